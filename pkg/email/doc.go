// Package email sends lifecycle notification mail over SMTP.
package email
