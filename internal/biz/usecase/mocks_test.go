package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/relaydesk/relay/internal/biz/domain"
	"github.com/relaydesk/relay/internal/biz/repo"
)

// mockClassifier returns canned classifications
type mockClassifier struct {
	mu      sync.Mutex
	direct  *domain.Classification
	group   *domain.Classification
	err     error
	lastReq repo.ClassifyRequest
	calls   int
}

func (m *mockClassifier) ClassifyDirect(ctx context.Context, req repo.ClassifyRequest) (*domain.Classification, error) {
	return m.classify(req, m.direct)
}

func (m *mockClassifier) ClassifyGroup(ctx context.Context, req repo.ClassifyRequest) (*domain.Classification, error) {
	return m.classify(req, m.group)
}

func (m *mockClassifier) classify(req repo.ClassifyRequest, c *domain.Classification) (*domain.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// mockReplyRepo returns a canned draft
type mockReplyRepo struct {
	mu      sync.Mutex
	draft   *domain.ReplyDraft
	err     error
	lastReq repo.ReplyRequest
}

func (m *mockReplyRepo) Draft(ctx context.Context, req repo.ReplyRequest) (*domain.ReplyDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.draft == nil {
		return nil, nil
	}
	cp := *m.draft
	return &cp, nil
}

// mockTranslator prefixes text with the target code. Detection returns
// detect, or English when unset.
type mockTranslator struct {
	mu          sync.Mutex
	detect      domain.Language
	detectErr   error
	failTargets map[string]bool
	translates  int
	detects     int
}

func (m *mockTranslator) Detect(ctx context.Context, text string) (*domain.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detects++
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	lang := m.detect
	if lang.Code == "" {
		lang = domain.English
	}
	return &domain.Detection{Language: lang, Confidence: 95}, nil
}

func (m *mockTranslator) Translate(ctx context.Context, text string, source, target domain.Language, hint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translates++
	if m.failTargets[target.Code] {
		return "", fmt.Errorf("translate to %s: upstream unavailable", target.Code)
	}
	return fmt.Sprintf("[%s] %s", target.Code, text), nil
}

func (m *mockTranslator) translateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.translates
}

// memCache is an in-memory translation cache
type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) Lookup(ctx context.Context, text, target string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[target+"\x00"+text]
	return v, ok, nil
}

func (c *memCache) Store(ctx context.Context, text, source, target, translated string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[target+"\x00"+text] = translated
	return nil
}

// memMarkers is an in-memory marker store
type memMarkers struct {
	mu      sync.Mutex
	markers map[string]domain.TranslationMarker
	err     error
}

func newMemMarkers() *memMarkers {
	return &memMarkers{markers: make(map[string]domain.TranslationMarker)}
}

func (m *memMarkers) Mark(ctx context.Context, marker *domain.TranslationMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.markers[marker.MessageID] = *marker
	return nil
}

func (m *memMarkers) IsMarked(ctx context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.markers[messageID]
	return ok, nil
}

func (m *memMarkers) Purge(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, marker := range m.markers {
		if marker.SentAt.Before(before) {
			delete(m.markers, id)
			n++
		}
	}
	return n, nil
}

// memLanguages is an in-memory language preference store
type memLanguages struct {
	mu    sync.Mutex
	prefs map[string]domain.LanguagePreference
}

func newMemLanguages() *memLanguages {
	return &memLanguages{prefs: make(map[string]domain.LanguagePreference)}
}

func (m *memLanguages) Get(ctx context.Context, userID string) (*domain.LanguagePreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memLanguages) Set(ctx context.Context, pref *domain.LanguagePreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.UserID] = *pref
	return nil
}

// memHistory is an in-memory group history
type memHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (m *memHistory) Append(ctx context.Context, e *domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memHistory) Recent(ctx context.Context, chatID, topicID string, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range m.entries {
		if e.ChatID != chatID || (topicID != "" && e.TopicID != topicID) {
			continue
		}
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// memQueue is an in-memory outbound queue
type memQueue struct {
	mu     sync.Mutex
	nextID int64
	jobs   []*domain.OutboundJob
	dead   []domain.DeadLetter
	err    error
}

func newMemQueue() *memQueue {
	return &memQueue{}
}

func (q *memQueue) Enqueue(ctx context.Context, job *domain.OutboundJob) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	q.nextID++
	cp := *job
	cp.ID = q.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	q.jobs = append(q.jobs, &cp)
	return cp.ID, nil
}

func (q *memQueue) DequeueOldest(ctx context.Context, sender domain.Identity, now time.Time) (*domain.OutboundJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	for _, j := range q.jobs {
		if j.Sender == sender && !j.AvailableAt.After(now) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (q *memQueue) DequeueUnrouted(ctx context.Context, known []domain.Identity, now time.Time) (*domain.OutboundJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	for _, j := range q.jobs {
		routed := false
		for _, id := range known {
			if j.Sender == id {
				routed = true
			}
		}
		if !routed && !j.AvailableAt.After(now) {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (q *memQueue) Ack(ctx context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(id)
	return nil
}

func (q *memQueue) Reschedule(ctx context.Context, id int64, attempts int, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.ID == id {
			j.Attempts = attempts
			j.AvailableAt = at
			return nil
		}
	}
	return domain.ErrNotFound
}

func (q *memQueue) DeadLetter(ctx context.Context, job *domain.OutboundJob, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(job.ID)
	q.dead = append(q.dead, domain.DeadLetter{JobID: job.ID, Job: *job, Reason: reason, FailedAt: time.Now()})
	return nil
}

func (q *memQueue) Depth(ctx context.Context, sender domain.Identity) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, j := range q.jobs {
		if j.Sender == sender {
			n++
		}
	}
	return n, nil
}

func (q *memQueue) DeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]domain.DeadLetter{}, q.dead...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (q *memQueue) remove(id int64) {
	for i, j := range q.jobs {
		if j.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}

func (q *memQueue) snapshot() []domain.OutboundJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.OutboundJob, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	return out
}

func (q *memQueue) deadLetters() []domain.DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.DeadLetter{}, q.dead...)
}

// memApprovals is an in-memory approval store. Resolve writes into the
// shared queue and correction store under one lock.
type memApprovals struct {
	mu           sync.Mutex
	approvals    map[string]*domain.PendingApproval
	queue        *memQueue
	corrections  *memCorrections
	interactions []domain.Interaction
}

func newMemApprovals(queue *memQueue, corrections *memCorrections) *memApprovals {
	return &memApprovals{
		approvals:   make(map[string]*domain.PendingApproval),
		queue:       queue,
		corrections: corrections,
	}
}

func (m *memApprovals) Create(ctx context.Context, a *domain.PendingApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.approvals[a.Token]; ok {
		return errors.New("duplicate token")
	}
	cp := *a
	m.approvals[a.Token] = &cp
	return nil
}

func (m *memApprovals) Get(ctx context.Context, token string) (*domain.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memApprovals) List(ctx context.Context) ([]*domain.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PendingApproval
	for _, a := range m.approvals {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memApprovals) Resolve(ctx context.Context, token string, fn repo.ResolveFunc) (*domain.PendingApproval, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[token]
	if !ok {
		return nil, 0, domain.ErrNotFound
	}
	res, err := fn(a)
	if err != nil {
		return nil, 0, err
	}
	var jobID int64
	if res.Job != nil {
		if jobID, err = m.queue.Enqueue(ctx, res.Job); err != nil {
			return nil, 0, err
		}
	}
	if res.Correction != nil {
		if _, err := m.corrections.Append(ctx, res.Correction); err != nil {
			return nil, 0, err
		}
	}
	if res.Interaction != nil {
		m.interactions = append(m.interactions, *res.Interaction)
	}
	delete(m.approvals, token)
	return a, jobID, nil
}

func (m *memApprovals) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.PendingApproval, error) {
	all, _ := m.List(ctx)
	var out []*domain.PendingApproval
	for _, a := range all {
		if a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memApprovals) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.approvals), nil
}

// memCorrections is an append-only correction log
type memCorrections struct {
	mu    sync.Mutex
	items []domain.Correction
}

func (m *memCorrections) Append(ctx context.Context, c *domain.Correction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = int64(len(m.items) + 1)
	m.items = append(m.items, cp)
	return cp.ID, nil
}

func (m *memCorrections) Recent(ctx context.Context, language string, limit int) ([]domain.Correction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Correction
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].Language == language {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

// memAudit records decision rows
type memAudit struct {
	mu      sync.Mutex
	records []domain.DecisionRecord
}

func (m *memAudit) RecordDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

// mockNotifier captures reviewer notifications
type mockNotifier struct {
	mu    sync.Mutex
	notes []string
	err   error
}

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, text)
	return m.err
}

// sentMessage is one message passed to mockChat
type sentMessage struct {
	Target repo.SendTarget
	Text   string
}

// mockChat sends as one identity and records what it sent
type mockChat struct {
	mu       sync.Mutex
	identity domain.Identity
	sent     []sentMessage
	err      error
	noID     bool
	nextID   int
}

func (m *mockChat) Identity() domain.Identity {
	return m.identity
}

func (m *mockChat) SendText(ctx context.Context, target repo.SendTarget, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMessage{Target: target, Text: text})
	if m.noID {
		return "", nil
	}
	m.nextID++
	return fmt.Sprintf("om_%s_%d", m.identity, m.nextID), nil
}

func (m *mockChat) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.Text)
	}
	return out
}

// memDirectory serves a fixed directory
type memDirectory struct {
	dir domain.Directory
	err error
}

func (m *memDirectory) Projects(ctx context.Context) ([]domain.Project, error) {
	return m.dir.Projects, m.err
}

func (m *memDirectory) Customers(ctx context.Context) ([]domain.Customer, error) {
	return m.dir.Customers, m.err
}

func (m *memDirectory) Schedule(ctx context.Context) ([]domain.ScheduleEntry, error) {
	return m.dir.Schedule, m.err
}

func (m *memDirectory) Issues(ctx context.Context) ([]domain.PastIssue, error) {
	return m.dir.Issues, m.err
}

func (m *memDirectory) Workers(ctx context.Context) ([]domain.Worker, error) {
	return m.dir.Workers, m.err
}

func testDirectory() domain.Directory {
	return domain.Directory{
		Projects: []domain.Project{{
			Key:          "mueller",
			ProjectID:    "PRJ-001",
			CustomerName: "Mueller Family",
			CustomerID:   "CUST-001",
			Address:      "Hauptstrasse 12",
			Status:       "in_progress",
		}},
		Customers: []domain.Customer{{
			CustomerID: "CUST-001",
			Name:       "Mueller Family",
			Language:   "de",
		}},
		Schedule: []domain.ScheduleEntry{
			{Date: "2024-05-02", Worker: "Piotr", Project: "PRJ-001", Task: "Tiling", Time: "09:00"},
			{Date: "2024-05-02", Worker: "Anna", Project: "PRJ-002", Task: "Painting", Time: "10:00"},
			{Date: "2024-05-03", Worker: "Piotr", Project: "PRJ-001", Task: "Grouting", Time: "08:00"},
		},
		Issues: []domain.PastIssue{
			{IssueType: "Water leak", Description: "Leak under sink", Solution: "Replaced seal", Success: true},
			{IssueType: "Cracked tile", Description: "Tile cracked after drying", Solution: "Re-laid tile", Success: true},
		},
		Workers: []domain.Worker{
			{Name: "Piotr", Role: "tiler", Language: "pl"},
			{Name: "Anna", Role: "painter", Language: "de"},
		},
	}
}

func ptr(s string) *string {
	return &s
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
