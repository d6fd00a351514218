package authz

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type linkRecord struct {
	status  LinkStatus
	deleted bool
}

type linkKey struct {
	resourceType ResourceType
	resourceID   uuid.UUID
}

// InMemResourceStore is an in-memory ResourceStore for tests and demos. It
// counts lookups per method so tests can assert query-cost properties such
// as the submission-link short-circuit.
type InMemResourceStore struct {
	mu sync.RWMutex

	owners          map[ResourceRef]OwnerInfo
	submissionLinks map[linkKey][]linkRecord
	requestLinks    map[linkKey][]linkRecord
	users           map[uuid.UUID]UserScope

	// Lookup counters, guarded by mu.
	ResolveOwnerCalls   int
	SubmissionLinkCalls int
	RequestLinkCalls    int
	GetUserScopeCalls   int
}

// NewInMemResourceStore creates an empty in-memory resource store.
func NewInMemResourceStore() *InMemResourceStore {
	return &InMemResourceStore{
		owners:          make(map[ResourceRef]OwnerInfo),
		submissionLinks: make(map[linkKey][]linkRecord),
		requestLinks:    make(map[linkKey][]linkRecord),
		users:           make(map[uuid.UUID]UserScope),
	}
}

// AddResource registers a resource with its owning institution.
func (s *InMemResourceStore) AddResource(ref ResourceRef, institutionID uuid.UUID, deletion Deletion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[ref] = OwnerInfo{InstitutionID: institutionID, Deletion: deletion}
}

// AddSubmissionLink registers a submission-linked resource record.
func (s *InMemResourceStore) AddSubmissionLink(ref ResourceRef, status LinkStatus, deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{ref.Type, ref.ID}
	s.submissionLinks[key] = append(s.submissionLinks[key], linkRecord{status: status, deleted: deleted})
}

// AddRequestLink registers a request-linked resource record.
func (s *InMemResourceStore) AddRequestLink(ref ResourceRef, status LinkStatus, deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{ref.Type, ref.ID}
	s.requestLinks[key] = append(s.requestLinks[key], linkRecord{status: status, deleted: deleted})
}

// SetSubmissionLinkStatus replaces all submission links for the resource
// with a single link in the given status.
func (s *InMemResourceStore) SetSubmissionLinkStatus(ref ResourceRef, status LinkStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissionLinks[linkKey{ref.Type, ref.ID}] = []linkRecord{{status: status}}
}

// AddUser registers a user scope for delegation checks.
func (s *InMemResourceStore) AddUser(scope UserScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[scope.UserID] = scope
}

func (s *InMemResourceStore) ResolveOwner(ctx context.Context, ref ResourceRef) (OwnerInfo, error) {
	s.mu.Lock()
	s.ResolveOwnerCalls++
	owner, ok := s.owners[ref]
	s.mu.Unlock()
	if !ok {
		return OwnerInfo{}, ErrNotFound
	}
	return owner, nil
}

func (s *InMemResourceStore) HasSubmissionLink(ctx context.Context, q LinkQuery) (bool, error) {
	s.mu.Lock()
	s.SubmissionLinkCalls++
	records := s.submissionLinks[linkKey{q.ResourceType, q.ResourceID}]
	s.mu.Unlock()
	return matchLinks(records, q), nil
}

func (s *InMemResourceStore) HasRequestLink(ctx context.Context, q LinkQuery) (bool, error) {
	s.mu.Lock()
	s.RequestLinkCalls++
	records := s.requestLinks[linkKey{q.ResourceType, q.ResourceID}]
	s.mu.Unlock()
	return matchLinks(records, q), nil
}

func (s *InMemResourceStore) GetUserScope(ctx context.Context, userID uuid.UUID) (UserScope, error) {
	s.mu.Lock()
	s.GetUserScopeCalls++
	scope, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return UserScope{}, ErrNotFound
	}
	return scope, nil
}

func matchLinks(records []linkRecord, q LinkQuery) bool {
	for _, r := range records {
		if r.deleted && !q.IncludeDeleted {
			continue
		}
		for _, status := range q.Statuses {
			if r.status == status {
				return true
			}
		}
	}
	return false
}
