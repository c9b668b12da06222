package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"greenexchange/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store. Transactions are serialised; each one
// keeps an undo log of the records it wrote and replays it when the callback
// fails, so writes made outside the transaction survive a rollback.
type MemoryStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	state    memoryState
	users    *memoryUsers
	trees    *memoryTrees
	sessions *memorySessions
}

type memoryState struct {
	users    map[primitive.ObjectID]models.User
	trees    map[primitive.ObjectID]models.Tree
	sessions map[string]models.Session
}

// undoLog holds the value each key had before the transaction first wrote
// it; nil means the key did not exist.
type undoLog struct {
	users    map[primitive.ObjectID]*models.User
	trees    map[primitive.ObjectID]*models.Tree
	sessions map[string]*models.Session
}

type undoKey struct{}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		state: memoryState{
			users:    map[primitive.ObjectID]models.User{},
			trees:    map[primitive.ObjectID]models.Tree{},
			sessions: map[string]models.Session{},
		},
	}
	s.users = &memoryUsers{s: s}
	s.trees = &memoryTrees{s: s}
	s.sessions = &memorySessions{s: s}
	return s
}

func (s *MemoryStore) Users() UserStore       { return s.users }
func (s *MemoryStore) Trees() TreeStore       { return s.trees }
func (s *MemoryStore) Sessions() SessionStore { return s.sessions }

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{
		users:    map[primitive.ObjectID]*models.User{},
		trees:    map[primitive.ObjectID]*models.Tree{},
		sessions: map[string]*models.Session{},
	}
	if err := fn(context.WithValue(ctx, undoKey{}, undo)); err != nil {
		s.mu.Lock()
		s.rollback(undo)
		s.mu.Unlock()
		return err
	}
	return nil
}

// rollback restores every key in undo. Callers hold mu.
func (s *MemoryStore) rollback(undo *undoLog) {
	for id, prev := range undo.users {
		if prev == nil {
			delete(s.state.users, id)
		} else {
			s.state.users[id] = *prev
		}
	}
	for id, prev := range undo.trees {
		if prev == nil {
			delete(s.state.trees, id)
		} else {
			s.state.trees[id] = *prev
		}
	}
	for id, prev := range undo.sessions {
		if prev == nil {
			delete(s.state.sessions, id)
		} else {
			s.state.sessions[id] = *prev
		}
	}
}

func undoFrom(ctx context.Context) *undoLog {
	undo, _ := ctx.Value(undoKey{}).(*undoLog)
	return undo
}

// The touch helpers record the current value of a key before its first write
// inside a transaction. Callers hold mu.

func (s *MemoryStore) touchUser(ctx context.Context, id primitive.ObjectID) {
	undo := undoFrom(ctx)
	if undo == nil {
		return
	}
	if _, seen := undo.users[id]; seen {
		return
	}
	var prev *models.User
	if u, ok := s.state.users[id]; ok {
		u = cloneUser(u)
		prev = &u
	}
	undo.users[id] = prev
}

func (s *MemoryStore) touchTree(ctx context.Context, id primitive.ObjectID) {
	undo := undoFrom(ctx)
	if undo == nil {
		return
	}
	if _, seen := undo.trees[id]; seen {
		return
	}
	var prev *models.Tree
	if t, ok := s.state.trees[id]; ok {
		t = cloneTree(t)
		prev = &t
	}
	undo.trees[id] = prev
}

func (s *MemoryStore) touchSession(ctx context.Context, id string) {
	undo := undoFrom(ctx)
	if undo == nil {
		return
	}
	if _, seen := undo.sessions[id]; seen {
		return
	}
	var prev *models.Session
	if sess, ok := s.state.sessions[id]; ok {
		prev = &sess
	}
	undo.sessions[id] = prev
}

func cloneUser(u models.User) models.User {
	u.Trees = append([]primitive.ObjectID{}, u.Trees...)
	u.Certificates = append([]primitive.ObjectID{}, u.Certificates...)
	return u
}

func cloneTree(t models.Tree) models.Tree {
	if t.Owner != nil {
		owner := *t.Owner
		t.Owner = &owner
	}
	return t
}

type memoryUsers struct {
	s *MemoryStore
}

func (m *memoryUsers) Create(ctx context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, existing := range m.s.state.users {
		if existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Trees == nil {
		user.Trees = []primitive.ObjectID{}
	}
	if user.Certificates == nil {
		user.Certificates = []primitive.ObjectID{}
	}
	m.s.touchUser(ctx, user.ID)
	m.s.state.users[user.ID] = cloneUser(*user)
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.state.users {
		if u.Email == email {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryUsers) AppendTree(ctx context.Context, userID, treeID primitive.ObjectID) error {
	return m.mutate(ctx, userID, func(u *models.User) {
		u.Trees = append(u.Trees, treeID)
	})
}

func (m *memoryUsers) AddCertificate(ctx context.Context, userID, treeID primitive.ObjectID) error {
	return m.mutate(ctx, userID, func(u *models.User) {
		if !slices.Contains(u.Certificates, treeID) {
			u.Certificates = append(u.Certificates, treeID)
		}
	})
}

func (m *memoryUsers) RemoveCertificate(ctx context.Context, userID, treeID primitive.ObjectID) error {
	return m.mutate(ctx, userID, func(u *models.User) {
		u.Certificates = slices.DeleteFunc(u.Certificates, func(id primitive.ObjectID) bool {
			return id == treeID
		})
	})
}

func (m *memoryUsers) mutate(ctx context.Context, id primitive.ObjectID, fn func(u *models.User)) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.state.users[id]
	if !ok {
		return ErrNotFound
	}
	m.s.touchUser(ctx, id)
	u = cloneUser(u)
	fn(&u)
	m.s.state.users[id] = u
	return nil
}

func (m *memoryUsers) ClearTreeRefs(ctx context.Context) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for id, u := range m.s.state.users {
		m.s.touchUser(ctx, id)
		u.Trees = []primitive.ObjectID{}
		u.Certificates = []primitive.ObjectID{}
		m.s.state.users[id] = u
	}
	return nil
}

func (m *memoryUsers) Count(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.state.users)), nil
}

type memoryTrees struct {
	s *MemoryStore
}

func (m *memoryTrees) Create(ctx context.Context, tree *models.Tree) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if tree.ID.IsZero() {
		tree.ID = primitive.NewObjectID()
	}
	m.s.touchTree(ctx, tree.ID)
	m.s.state.trees[tree.ID] = cloneTree(*tree)
	return nil
}

func (m *memoryTrees) FindByID(_ context.Context, id primitive.ObjectID) (*models.Tree, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	t, ok := m.s.state.trees[id]
	if !ok {
		return nil, ErrNotFound
	}
	t = cloneTree(t)
	return &t, nil
}

func (m *memoryTrees) FindMany(_ context.Context, ids []primitive.ObjectID) ([]models.Tree, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	trees := make([]models.Tree, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.s.state.trees[id]; ok {
			trees = append(trees, cloneTree(t))
		}
	}
	return trees, nil
}

func (m *memoryTrees) List(_ context.Context) ([]models.Tree, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	trees := make([]models.Tree, 0, len(m.s.state.trees))
	for _, t := range m.s.state.trees {
		trees = append(trees, cloneTree(t))
	}
	// ObjectIDs start with a timestamp, so hex order is creation order.
	sort.Slice(trees, func(i, j int) bool {
		return trees[i].ID.Hex() < trees[j].ID.Hex()
	})
	return trees, nil
}

func (m *memoryTrees) Transition(ctx context.Context, id primitive.ObjectID, change models.StatusChange) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	t, ok := m.s.state.trees[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != change.From {
		return ErrConflict
	}
	m.s.touchTree(ctx, id)
	t.Status = change.To
	if change.ClearOwner {
		t.Owner = nil
	}
	m.s.state.trees[id] = t
	return nil
}

func (m *memoryTrees) CountByStatus(_ context.Context, status models.TreeStatus) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var n int64
	for _, t := range m.s.state.trees {
		if t.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *memoryTrees) Count(_ context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.state.trees)), nil
}

func (m *memoryTrees) DeleteAll(ctx context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	n := int64(len(m.s.state.trees))
	for id := range m.s.state.trees {
		m.s.touchTree(ctx, id)
		delete(m.s.state.trees, id)
	}
	return n, nil
}

type memorySessions struct {
	s *MemoryStore
}

func (m *memorySessions) Create(ctx context.Context, session *models.Session) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.state.sessions[session.ID]; ok {
		return ErrDuplicate
	}
	m.s.touchSession(ctx, session.ID)
	m.s.state.sessions[session.ID] = *session
	return nil
}

func (m *memorySessions) Find(_ context.Context, id string) (*models.Session, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	sess, ok := m.s.state.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (m *memorySessions) Delete(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.touchSession(ctx, id)
	delete(m.s.state.sessions, id)
	return nil
}
