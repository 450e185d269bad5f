package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docshield/docshield"
	"github.com/docshield/docshield/internal/domain"
	"github.com/docshield/docshield/policy"
)

// --- shared in-memory mocks ---

type mockRoleRepo struct {
	mu        sync.Mutex
	records   map[string]docshield.WalletRole
	order     []string
	owner     string
	assignErr error
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{records: map[string]docshield.WalletRole{}}
}

func (m *mockRoleRepo) Get(ctx context.Context, address string) (docshield.WalletRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[address]
	if !ok {
		return docshield.WalletRole{}, domain.NotFoundError{Resource: "wallet role"}
	}
	return record, nil
}

func (m *mockRoleRepo) IsOwner(ctx context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner != "" && m.owner == address, nil
}

func (m *mockRoleRepo) HasOwner(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner != "", nil
}

func (m *mockRoleRepo) Owner(ctx context.Context) (docshield.WalletRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner == "" {
		return docshield.WalletRole{}, domain.NotFoundError{Resource: "owner"}
	}
	return m.records[m.owner], nil
}

func (m *mockRoleRepo) ClaimOwnership(ctx context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != "" {
		return false, nil
	}
	m.owner = address
	m.records[address] = docshield.WalletRole{Address: address, Role: docshield.RoleFounder, IsOwner: true}
	m.order = append(m.order, address)
	return true, nil
}

func (m *mockRoleRepo) Assign(ctx context.Context, address string, role docshield.Role, name *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignErr != nil {
		return m.assignErr
	}
	record, ok := m.records[address]
	if !ok {
		record = docshield.WalletRole{Address: address}
		m.order = append(m.order, address)
	}
	record.Role = role
	if name != nil {
		record.Name = name
	}
	m.records[address] = record
	return nil
}

func (m *mockRoleRepo) Remove(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[address]
	if !ok {
		return domain.NotFoundError{Resource: "wallet role"}
	}
	if record.IsOwner {
		return domain.ConflictError{Reason: "owner role cannot be removed"}
	}
	delete(m.records, address)
	return nil
}

func (m *mockRoleRepo) List(ctx context.Context) ([]docshield.WalletRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]docshield.WalletRole, 0, len(m.order))
	for _, address := range m.order {
		if record, ok := m.records[address]; ok {
			records = append(records, record)
		}
	}
	return records, nil
}

type mockRequestRepo struct {
	mu       sync.Mutex
	seq      int
	requests map[string]docshield.AccessRequest
	roles    *mockRoleRepo
}

func newMockRequestRepo(roles *mockRoleRepo) *mockRequestRepo {
	return &mockRequestRepo{requests: map[string]docshield.AccessRequest{}, roles: roles}
}

func (m *mockRequestRepo) Get(ctx context.Context, id string) (docshield.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return docshield.AccessRequest{}, domain.NotFoundError{Resource: "access request"}
	}
	return request, nil
}

func (m *mockRequestRepo) Submit(ctx context.Context, address string, name string, requested docshield.Role) (docshield.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, request := range m.requests {
		if request.Address == address && request.Status == docshield.RequestPending {
			delete(m.requests, id)
		}
	}
	m.seq++
	request := docshield.AccessRequest{
		ID:            fmt.Sprintf("req-%d", m.seq),
		Address:       address,
		Name:          name,
		RequestedRole: requested,
		Status:        docshield.RequestPending,
		CreatedAt:     time.Unix(int64(m.seq), 0),
	}
	m.requests[request.ID] = request
	return request, nil
}

func (m *mockRequestRepo) Approve(ctx context.Context, id string, granted docshield.Role) (docshield.AccessRequest, error) {
	m.mu.Lock()
	request, ok := m.requests[id]
	m.mu.Unlock()
	if !ok {
		return docshield.AccessRequest{}, domain.NotFoundError{Resource: "access request"}
	}

	name := request.Name
	if err := m.roles.Assign(ctx, request.Address, granted, &name); err != nil {
		return docshield.AccessRequest{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	request.Status = docshield.RequestApproved
	request.RequestedRole = granted
	request.ReviewedAt = &now
	m.requests[id] = request
	return request, nil
}

func (m *mockRequestRepo) Decline(ctx context.Context, id string) (docshield.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return docshield.AccessRequest{}, domain.NotFoundError{Resource: "access request"}
	}
	now := time.Now()
	request.Status = docshield.RequestDeclined
	request.ReviewedAt = &now
	m.requests[id] = request
	return request, nil
}

func (m *mockRequestRepo) ListPending(ctx context.Context) ([]docshield.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []docshield.AccessRequest
	for _, request := range m.requests {
		if request.Status == docshield.RequestPending {
			pending = append(pending, request)
		}
	}
	for i := 0; i < len(pending); i++ {
		for j := i + 1; j < len(pending); j++ {
			if pending[j].CreatedAt.After(pending[i].CreatedAt) {
				pending[i], pending[j] = pending[j], pending[i]
			}
		}
	}
	return pending, nil
}

func (m *mockRequestRepo) Latest(ctx context.Context, address string) (docshield.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *docshield.AccessRequest
	for _, request := range m.requests {
		if request.Address != address {
			continue
		}
		r := request
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = &r
		}
	}
	if latest == nil {
		return docshield.AccessRequest{}, domain.NotFoundError{Resource: "access request"}
	}
	return *latest, nil
}

type mockDocRepo struct {
	fields []docshield.Field
	table  policy.Table
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{
		fields: docshield.SeedFields(),
		table:  policy.BuiltinTable(),
	}
}

func (m *mockDocRepo) List(ctx context.Context) ([]docshield.Field, error) {
	return m.fields, nil
}

func (m *mockDocRepo) Get(ctx context.Context, id docshield.FieldID) (docshield.Field, error) {
	for _, field := range m.fields {
		if field.ID == id {
			return field, nil
		}
	}
	return docshield.Field{}, domain.NotFoundError{Resource: "document field"}
}

func (m *mockDocRepo) Create(ctx context.Context, field docshield.Field) error {
	m.fields = append(m.fields, field)
	return nil
}

func (m *mockDocRepo) Update(ctx context.Context, field docshield.Field) error {
	for i := range m.fields {
		if m.fields[i].ID == field.ID {
			m.fields[i] = field
			return nil
		}
	}
	return domain.NotFoundError{Resource: "document field"}
}

func (m *mockDocRepo) Delete(ctx context.Context, id docshield.FieldID) error {
	for i := range m.fields {
		if m.fields[i].ID == id {
			m.fields = append(m.fields[:i], m.fields[i+1:]...)
			return nil
		}
	}
	return domain.NotFoundError{Resource: "document field"}
}

func (m *mockDocRepo) Rules(ctx context.Context) (policy.Table, error) {
	return m.table, nil
}

func (m *mockDocRepo) SetRule(ctx context.Context, id docshield.FieldID, role docshield.Role, rule policy.Rule) error {
	m.table.Set(role, id, rule)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []docshield.Event
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, event docshield.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	channels := make([]string, 0, len(m.events))
	for _, event := range m.events {
		channels = append(channels, event.Channel)
	}
	return channels
}

type mockRewriter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockRewriter) Mask(ctx context.Context, content string, role string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.calls++
	return fmt.Sprintf("paraphrase #%d for %s", m.calls, role), nil
}
