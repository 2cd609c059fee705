package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CMSgov/dpc-portal/models"
)

// FakeOrgDirectory is an in-memory OrgDirectoryClient with deterministic identifiers.
// Setting Err makes every call fail, setting DenyDeletes makes deletes return false.
type FakeOrgDirectory struct {
	Err         error
	DenyDeletes bool
	Now         func() time.Time

	mu           sync.Mutex
	seq          int
	implementers map[string]models.Implementer
	orgs         map[string][]models.ProviderOrg
	tokens       map[string][]models.ClientToken
	keys         map[string][]models.PublicKey
}

func NewFakeOrgDirectory() *FakeOrgDirectory {
	return &FakeOrgDirectory{
		Now:          time.Now,
		implementers: map[string]models.Implementer{},
		orgs:         map[string][]models.ProviderOrg{},
		tokens:       map[string][]models.ClientToken{},
		keys:         map[string][]models.PublicKey{},
	}
}

func (f *FakeOrgDirectory) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *FakeOrgDirectory) now() *time.Time {
	t := f.Now().UTC()
	return &t
}

func (f *FakeOrgDirectory) CreateImplementer(_ context.Context, name string) (*models.Implementer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	impl := models.Implementer{ID: f.next("impl"), Name: name}
	f.implementers[impl.ID] = impl
	return &impl, nil
}

func (f *FakeOrgDirectory) CreateProviderOrg(_ context.Context, implementerID, npi string) (*models.ProviderOrg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	org := models.ProviderOrg{OrgID: f.next("org"), NPI: npi, Name: "Organization " + npi, Status: "Active"}
	f.orgs[implementerID] = append(f.orgs[implementerID], org)
	return &org, nil
}

func (f *FakeOrgDirectory) GetProviderOrgs(_ context.Context, implementerID string) ([]models.ProviderOrg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.ProviderOrg{}, f.orgs[implementerID]...), nil
}

func (f *FakeOrgDirectory) CreateClientToken(_ context.Context, orgID, label string) (*models.ClientToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	id := f.next("tok")
	token := models.ClientToken{ID: id, Label: label, Token: "material-" + id, CreatedAt: f.now()}
	stored := token
	stored.Token = ""
	f.tokens[orgID] = append(f.tokens[orgID], stored)
	return &token, nil
}

func (f *FakeOrgDirectory) DeleteClientToken(_ context.Context, orgID, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if f.DenyDeletes {
		return false, nil
	}

	for i, t := range f.tokens[orgID] {
		if t.ID == tokenID {
			f.tokens[orgID] = append(f.tokens[orgID][:i], f.tokens[orgID][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeOrgDirectory) GetClientTokens(_ context.Context, orgID string) ([]models.ClientToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.ClientToken{}, f.tokens[orgID]...), nil
}

func (f *FakeOrgDirectory) CreatePublicKey(_ context.Context, orgID, label, publicKey string) (*models.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	key := models.PublicKey{ID: f.next("key"), Label: label, PublicKey: publicKey, CreatedAt: f.now()}
	f.keys[orgID] = append(f.keys[orgID], key)
	return &key, nil
}

func (f *FakeOrgDirectory) DeletePublicKey(_ context.Context, orgID, keyID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if f.DenyDeletes {
		return false, nil
	}

	for i, k := range f.keys[orgID] {
		if k.ID == keyID {
			f.keys[orgID] = append(f.keys[orgID][:i], f.keys[orgID][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeOrgDirectory) GetPublicKeys(_ context.Context, orgID string) ([]models.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]models.PublicKey{}, f.keys[orgID]...), nil
}
