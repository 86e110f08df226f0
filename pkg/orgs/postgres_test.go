package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orgRows = []string{
	"id", "mrn", "name", "email", "url", "address", "country", "approved",
	"idp_attributes", "created_at", "updated_at",
}

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("urn:mrn:mcl:org:dma", "Danish Maritime Authority", "info@dma.dk", "", "", "Denmark", false, []byte("null")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	org := &Organization{
		Mrn:     "urn:mrn:mcl:org:dma",
		Name:    "Danish Maritime Authority",
		Email:   "info@dma.dk",
		Country: "Denmark",
	}
	require.NoError(t, store.Create(context.Background(), org))
	assert.Equal(t, int64(1), org.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByMrn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now().UTC()
	attrs := []byte(`[{"name":"providerType","value":"oidc"}]`)

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE mrn").
		WithArgs("urn:mrn:mcl:org:dma").
		WillReturnRows(sqlmock.NewRows(orgRows).AddRow(
			int64(1), "urn:mrn:mcl:org:dma", "Danish Maritime Authority", "info@dma.dk",
			"", "", "Denmark", true, attrs, now, now,
		))

	org, err := store.GetByMrn(context.Background(), "urn:mrn:mcl:org:dma")
	require.NoError(t, err)
	assert.True(t, org.Approved)
	require.Len(t, org.IdpAttributes, 1)
	assert.Equal(t, "providerType", org.IdpAttributes[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByMrn_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE mrn").
		WithArgs("urn:mrn:mcl:org:gone").
		WillReturnRows(sqlmock.NewRows(orgRows))

	_, err = store.GetByMrn(context.Background(), "urn:mrn:mcl:org:gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUnapproved(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE approved = false").
		WillReturnRows(sqlmock.NewRows(orgRows).AddRow(
			int64(2), "urn:mrn:mcl:org:sma", "Swedish Maritime Administration", "info@sma.se",
			"", "", "Sweden", false, []byte("[]"), now, now,
		))

	pending, err := store.ListUnapproved(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "urn:mrn:mcl:org:sma", pending[0].Mrn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("UPDATE organizations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.Update(context.Background(), &Organization{ID: 42})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("DELETE FROM organizations").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}
