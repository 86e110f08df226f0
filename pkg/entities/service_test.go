package entities

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maritimeconnect/mir/pkg/certificates"
	"github.com/maritimeconnect/mir/pkg/directory"
	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/observability"
)

type memoryStore struct {
	nextID    int64
	entities  map[int64]*Entity
	createErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, entities: make(map[int64]*Entity)}
}

func (s *memoryStore) Create(_ context.Context, entity *Entity) error {
	if s.createErr != nil {
		return s.createErr
	}
	entity.ID = s.nextID
	s.nextID++
	entity.CreatedAt = time.Now().UTC()
	entity.UpdatedAt = entity.CreatedAt
	clone := *entity
	s.entities[entity.ID] = &clone
	return nil
}

func (s *memoryStore) GetByMrn(_ context.Context, orgID int64, kind Kind, mrn string) (*Entity, error) {
	for _, entity := range s.entities {
		if entity.OrgID == orgID && entity.Kind == kind && entity.Mrn == mrn {
			clone := *entity
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) ListByOrg(_ context.Context, orgID int64, kind Kind) ([]*Entity, error) {
	var out []*Entity
	for _, entity := range s.entities {
		if entity.OrgID == orgID && entity.Kind == kind {
			clone := *entity
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memoryStore) ListAllByOrg(_ context.Context, orgID int64) ([]*Entity, error) {
	var out []*Entity
	for _, entity := range s.entities {
		if entity.OrgID == orgID {
			clone := *entity
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, entity *Entity) error {
	if _, ok := s.entities[entity.ID]; !ok {
		return ErrNotFound
	}
	clone := *entity
	s.entities[entity.ID] = &clone
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.entities[id]; !ok {
		return ErrNotFound
	}
	delete(s.entities, id)
	return nil
}

type fakeRevoker struct {
	owners []certificates.Owner
}

func (f *fakeRevoker) CascadeRevoke(_ context.Context, owner certificates.Owner) error {
	f.owners = append(f.owners, owner)
	return nil
}

type fakeRegistrar struct {
	created []*federation.OIDCClient
	updated []*federation.OIDCClient
	deleted []string
}

func (f *fakeRegistrar) CreateClient(_ context.Context, client *federation.OIDCClient) error {
	f.created = append(f.created, client)
	return nil
}

func (f *fakeRegistrar) UpdateClient(_ context.Context, client *federation.OIDCClient) error {
	f.updated = append(f.updated, client)
	return nil
}

func (f *fakeRegistrar) DeleteClient(_ context.Context, clientID string) error {
	f.deleted = append(f.deleted, clientID)
	return nil
}

type fakeDirectory struct {
	created []directory.UserSpec
	updated []directory.UserSpec
	deleted []string
}

func (f *fakeDirectory) CreateUser(_ context.Context, spec directory.UserSpec) error {
	f.created = append(f.created, spec)
	return nil
}

func (f *fakeDirectory) UpdateUser(_ context.Context, spec directory.UserSpec) error {
	f.updated = append(f.updated, spec)
	return nil
}

func (f *fakeDirectory) DeleteUser(_ context.Context, email string) error {
	f.deleted = append(f.deleted, email)
	return nil
}

type fixture struct {
	service   *Service
	store     *memoryStore
	revoker   *fakeRevoker
	registrar *fakeRegistrar
	directory *fakeDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemoryStore(),
		revoker:   &fakeRevoker{},
		registrar: &fakeRegistrar{},
		directory: &fakeDirectory{},
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	f.service = NewService(f.store, f.revoker, f.registrar, f.directory, logger)
	return f
}

const (
	dmaOrgID  = int64(3)
	dmaOrgMrn = "urn:mrn:mcl:org:dma"
)

func TestCreateVessel(t *testing.T) {
	f := newFixture(t)

	entity, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind: KindVessel,
		Mrn:  "urn:mrn:mcl:vessel:dma:poul-loewenoern",
		Name: "Poul Loewenoern",
	})
	require.NoError(t, err)
	assert.NotZero(t, entity.ID)
	assert.Equal(t, dmaOrgID, entity.OrgID)
	assert.Empty(t, f.registrar.created)
	assert.Empty(t, f.directory.created)
}

func TestCreateUser_MirrorsDirectory(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:        KindUser,
		Mrn:         "urn:mrn:mcl:user:dma:jdoe",
		Name:        "John Doe",
		Email:       "jdoe@dma.dk",
		Permissions: "MCUSER",
	})
	require.NoError(t, err)

	require.Len(t, f.directory.created, 1)
	spec := f.directory.created[0]
	assert.Equal(t, "urn:mrn:mcl:user:dma:jdoe", spec.Mrn)
	assert.Equal(t, dmaOrgMrn, spec.OrgMrn)
	assert.NotEmpty(t, spec.Password)
}

type fakeNotifier struct {
	sent [][4]string
}

func (f *fakeNotifier) SendUserCreated(_ context.Context, to, userName, loginName, password string) error {
	f.sent = append(f.sent, [4]string{to, userName, loginName, password})
	return nil
}

func TestCreateUser_SendsCredentialMail(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{}
	f.service.SetNotifier(notifier)

	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:  KindUser,
		Mrn:   "urn:mrn:mcl:user:dma:jdoe",
		Name:  "John Doe",
		Email: "jdoe@dma.dk",
	})
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "jdoe@dma.dk", notifier.sent[0][0])
	assert.Equal(t, "urn:mrn:mcl:user:dma:jdoe", notifier.sent[0][2])
	assert.NotEmpty(t, notifier.sent[0][3])
}

func TestCreateService_RegistersClient(t *testing.T) {
	f := newFixture(t)

	entity, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:            KindService,
		Mrn:             "urn:mrn:mcl:org:dma:service:nw-nm:instance:nw-nm2",
		Name:            "NW-NM Service",
		OidcRedirectURI: "https://nw-nm.dma.dk/callback",
	})
	require.NoError(t, err)

	require.Len(t, f.registrar.created, 1)
	client := f.registrar.created[0]
	assert.Equal(t, "mcl_dma_nw-nm_nw-nm2", client.ClientID)
	assert.NotEmpty(t, client.Secret)
	assert.Equal(t, []string{"https://nw-nm.dma.dk/callback"}, client.RedirectURIs)
	assert.Equal(t, "mcl_dma_nw-nm_nw-nm2", entity.OidcClientID)
}

func TestCreateService_StoreFailureRemovesClient(t *testing.T) {
	f := newFixture(t)
	f.store.createErr = errors.New("insert failed")

	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:            KindService,
		Mrn:             "urn:mrn:mcl:org:dma:service:nw-nm:instance:nw-nm2",
		OidcRedirectURI: "https://nw-nm.dma.dk/callback",
	})
	require.Error(t, err)

	require.Len(t, f.registrar.created, 1)
	assert.Equal(t, []string{"mcl_dma_nw-nm_nw-nm2"}, f.registrar.deleted)
}

func TestUpdateService_UpdatesBrokerClient(t *testing.T) {
	f := newFixture(t)
	entity, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:            KindService,
		Mrn:             "urn:mrn:mcl:org:dma:service:nw-nm:instance:nw-nm2",
		Name:            "NW-NM Service",
		OidcRedirectURI: "https://nw-nm.dma.dk/callback",
	})
	require.NoError(t, err)

	updated, err := f.service.Update(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:            KindService,
		Mrn:             entity.Mrn,
		Name:            "NW-NM Service",
		OidcRedirectURI: "https://nw-nm.dma.dk/oauth/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://nw-nm.dma.dk/oauth/callback", updated.OidcRedirectURI)

	require.Len(t, f.registrar.updated, 1)
	client := f.registrar.updated[0]
	assert.Equal(t, "mcl_dma_nw-nm_nw-nm2", client.ClientID)
	assert.Equal(t, []string{"https://nw-nm.dma.dk/oauth/callback"}, client.RedirectURIs)
}

func TestUpdateVessel_DoesNotTouchBroker(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind: KindVessel,
		Mrn:  "urn:mrn:mcl:vessel:dma:poul-loewenoern",
		Name: "Poul Loewenoern",
	})
	require.NoError(t, err)

	_, err = f.service.Update(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind: KindVessel,
		Mrn:  "urn:mrn:mcl:vessel:dma:poul-loewenoern",
		Name: "Poul Løwenørn",
	})
	require.NoError(t, err)
	assert.Empty(t, f.registrar.updated)
}

func TestCreate_WrongOrganization(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind: KindVessel,
		Mrn:  "urn:mrn:mcl:vessel:sma:other-ship",
	})
	assert.ErrorIs(t, err, ErrMrnMismatch)
}

func TestDelete_RevokesBeforeRemoval(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind: KindVessel,
		Mrn:  "urn:mrn:mcl:vessel:dma:poul-loewenoern",
		Name: "Poul Loewenoern",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), dmaOrgID, KindVessel, "urn:mrn:mcl:vessel:dma:poul-loewenoern"))

	require.Len(t, f.revoker.owners, 1)
	assert.Equal(t, certificates.KindVessel, f.revoker.owners[0].Kind)
	assert.Empty(t, f.store.entities)
}

func TestDelete_UserCleansDirectory(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:  KindUser,
		Mrn:   "urn:mrn:mcl:user:dma:jdoe",
		Email: "jdoe@dma.dk",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), dmaOrgID, KindUser, "urn:mrn:mcl:user:dma:jdoe"))
	assert.Equal(t, []string{"jdoe@dma.dk"}, f.directory.deleted)
}

func TestDeleteByOrg(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind: KindVessel,
		Mrn:  "urn:mrn:mcl:vessel:dma:poul-loewenoern",
	})
	require.NoError(t, err)
	_, err = f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:            KindService,
		Mrn:             "urn:mrn:mcl:org:dma:service:nw-nm:instance:nw-nm2",
		OidcRedirectURI: "https://nw-nm.dma.dk/callback",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteByOrg(context.Background(), dmaOrgID))

	assert.Len(t, f.revoker.owners, 2)
	assert.Equal(t, []string{"mcl_dma_nw-nm_nw-nm2"}, f.registrar.deleted)
	assert.Empty(t, f.store.entities)
}

func TestListUserEmails(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), dmaOrgID, dmaOrgMrn, &Entity{
		Kind:  KindUser,
		Mrn:   "urn:mrn:mcl:user:dma:jdoe",
		Email: "jdoe@dma.dk",
	})
	require.NoError(t, err)

	emails, err := f.service.ListUserEmails(context.Background(), dmaOrgID)
	require.NoError(t, err)
	assert.Equal(t, []string{"jdoe@dma.dk"}, emails)
}
