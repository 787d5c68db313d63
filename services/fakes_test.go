package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/repositories"
)

// memStore is an in-memory stand-in for the postgres schema, shared by the
// fake repositories below. memTx snapshots it to emulate rollback.
type memStore struct {
	mu sync.Mutex
	// txMu serializes memTx like the tournament row lock does in postgres.
	txMu sync.Mutex

	nextID       int
	tournaments  map[int]models.Tournament
	participants []models.Participant
	groups       map[int]models.Group
	rooms        map[int]models.Room
	messages     []models.Message

	failRoomEnsureAt int // 1-based call number that fails; 0 disables
	roomEnsureCalls  int
	failDelete       error // returned by group and room Delete when set
	ensureHook       func() // runs at the start of rooms.Ensure, outside the lock
}

func newMemStore() *memStore {
	return &memStore{
		tournaments: make(map[int]models.Tournament),
		groups:      make(map[int]models.Group),
		rooms:       make(map[int]models.Room),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	nextID       int
	tournaments  map[int]models.Tournament
	participants []models.Participant
	groups       map[int]models.Group
	rooms        map[int]models.Room
	messages     []models.Message
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		nextID:       s.nextID,
		tournaments:  make(map[int]models.Tournament, len(s.tournaments)),
		participants: append([]models.Participant(nil), s.participants...),
		groups:       make(map[int]models.Group, len(s.groups)),
		rooms:        make(map[int]models.Room, len(s.rooms)),
		messages:     append([]models.Message(nil), s.messages...),
	}
	for k, v := range s.tournaments {
		snap.tournaments[k] = v
	}
	for k, v := range s.groups {
		v.MemberIDs = append([]int(nil), v.MemberIDs...)
		snap.groups[k] = v
	}
	for k, v := range s.rooms {
		snap.rooms[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.tournaments = snap.tournaments
	s.participants = snap.participants
	s.groups = snap.groups
	s.rooms = snap.rooms
	s.messages = snap.messages
}

type memTx struct{ store *memStore }

func (t memTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- tournaments ---

type memTournaments struct{ *memStore }

func (r memTournaments) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.id()
	t.CreatedAt = time.Now().UTC()
	r.tournaments[t.ID] = *t
	return nil
}

func (r memTournaments) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r memTournaments) LockByID(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r memTournaments) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.tournaments {
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTournaments) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	r.tournaments[id] = t
	return nil
}

// --- participants ---

type memParticipants struct{ *memStore }

func (r memParticipants) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.id()
	p.CreatedAt = time.Now().UTC()
	r.participants = append(r.participants, *p)
	return nil
}

func (r memParticipants) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.ParticipantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.participants {
		if r.participants[i].ID == id {
			r.participants[i].Status = status
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

func (r memParticipants) FindByID(_ context.Context, id int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r memParticipants) FindByUserAndTournament(_ context.Context, userID, tournamentID int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.UserID == userID && p.TournamentID == tournamentID {
			return &p, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r memParticipants) ListByTournament(_ context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Participant, 0)
	for _, p := range r.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		if status != nil && p.Status != *status {
			continue
		}
		p := p
		out = append(out, &p)
	}
	return out, nil
}

func (r memParticipants) CountActive(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.participants {
		if p.TournamentID == tournamentID && p.Status != models.ParticipantCancelled {
			n++
		}
	}
	return n, nil
}

func (r memParticipants) DeleteByUserAndTournament(_ context.Context, _ repositories.SQLExecutor, userID, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.participants {
		if p.UserID == userID && p.TournamentID == tournamentID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

// --- groups ---

type memGroups struct{ *memStore }

func (r memGroups) withRoom(g models.Group) *models.Group {
	g.MemberIDs = append([]int{}, g.MemberIDs...)
	g.RoomID = nil
	for _, room := range r.rooms {
		if room.GroupID == g.ID {
			id := room.ID
			g.RoomID = &id
		}
	}
	return &g
}

func (r memGroups) Create(_ context.Context, _ repositories.SQLExecutor, g *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[g.TournamentID]; !ok {
		return repositories.ErrGroupTournamentInvalid
	}
	g.ID = r.id()
	g.CreatedAt = time.Now().UTC()
	stored := *g
	stored.MemberIDs = append([]int{}, g.MemberIDs...)
	r.groups[g.ID] = stored
	return nil
}

func (r memGroups) GetByID(_ context.Context, id int) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	return r.withRoom(g), nil
}

func (r memGroups) LockByID(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Group, error) {
	return r.GetByID(ctx, id)
}

func (r memGroups) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Group, 0)
	for _, g := range r.groups {
		if g.TournamentID == tournamentID {
			out = append(out, r.withRoom(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memGroups) Rename(_ context.Context, id int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	g.Name = name
	r.groups[id] = g
	return nil
}

func (r memGroups) AppendMember(_ context.Context, _ repositories.SQLExecutor, groupID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return false, repositories.ErrGroupNotFound
	}
	if g.HasMember(userID) {
		return false, nil
	}
	g.MemberIDs = append(append([]int{}, g.MemberIDs...), userID)
	r.groups[groupID] = g
	return true, nil
}

func without(ids []int, userID int) ([]int, bool) {
	out := make([]int, 0, len(ids))
	found := false
	for _, id := range ids {
		if id == userID {
			found = true
			continue
		}
		out = append(out, id)
	}
	return out, found
}

func (r memGroups) RemoveMember(_ context.Context, _ repositories.SQLExecutor, groupID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return false, repositories.ErrGroupNotFound
	}
	var found bool
	g.MemberIDs, found = without(g.MemberIDs, userID)
	r.groups[groupID] = g
	return found, nil
}

func (r memGroups) RemoveMemberFromTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID, userID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, g := range r.groups {
		if g.TournamentID != tournamentID {
			continue
		}
		var found bool
		g.MemberIDs, found = without(g.MemberIDs, userID)
		if found {
			n++
			r.groups[id] = g
		}
	}
	return n, nil
}

func (r memGroups) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return r.failDelete
	}
	if _, ok := r.groups[id]; !ok {
		return repositories.ErrGroupNotFound
	}
	delete(r.groups, id)
	for roomID, room := range r.rooms {
		if room.GroupID == id {
			r.deleteRoomLocked(roomID)
		}
	}
	return nil
}

// --- rooms ---

type memRooms struct{ *memStore }

func (s *memStore) deleteRoomLocked(roomID int) {
	delete(s.rooms, roomID)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.RoomID != roomID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}

func (r memRooms) Ensure(ctx context.Context, _ repositories.SQLExecutor, groupID int) (*models.Room, bool, error) {
	if r.ensureHook != nil {
		r.ensureHook()
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomEnsureCalls++
	if r.failRoomEnsureAt > 0 && r.roomEnsureCalls == r.failRoomEnsureAt {
		return nil, false, errRoomInsertFailed
	}
	if _, ok := r.groups[groupID]; !ok {
		return nil, false, repositories.ErrRoomGroupInvalid
	}
	for _, room := range r.rooms {
		if room.GroupID == groupID {
			return &room, false, nil
		}
	}
	room := models.Room{ID: r.id(), GroupID: groupID, CreatedAt: time.Now().UTC()}
	r.rooms[room.ID] = room
	return &room, true, nil
}

func (r memRooms) GetByID(_ context.Context, id int) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, repositories.ErrRoomNotFound
	}
	return &room, nil
}

func (r memRooms) GetByGroupID(_ context.Context, groupID int) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.GroupID == groupID {
			return &room, nil
		}
	}
	return nil, repositories.ErrRoomNotFound
}

func (r memRooms) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return r.failDelete
	}
	if _, ok := r.rooms[id]; !ok {
		return repositories.ErrRoomNotFound
	}
	r.deleteRoomLocked(id)
	return nil
}

// --- messages ---

type memMessages struct{ *memStore }

func (r memMessages) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[m.RoomID]; !ok {
		return repositories.ErrRoomNotFound
	}
	r.messages = append(r.messages, *m)
	return nil
}

func (r memMessages) GetByID(_ context.Context, roomID int, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.RoomID == roomID && m.ID == id {
			return &m, nil
		}
	}
	return nil, repositories.ErrMessageNotFound
}

func (r memMessages) ListByRoom(_ context.Context, roomID int, includeDeleted bool) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range r.messages {
		if m.RoomID != roomID {
			continue
		}
		if !includeDeleted && m.State == models.MessageDeleted {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r memMessages) UpdateContent(_ context.Context, roomID int, id string, content string, editedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		m := &r.messages[i]
		if m.RoomID == roomID && m.ID == id && m.State != models.MessageDeleted {
			m.Content = content
			m.State = models.MessageEdited
			m.EditedAt = &editedAt
			return nil
		}
	}
	return repositories.ErrMessageNotFound
}

func (r memMessages) MarkDeleted(_ context.Context, roomID int, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].RoomID == roomID && r.messages[i].ID == id {
			r.messages[i].State = models.MessageDeleted
			return nil
		}
	}
	return repositories.ErrMessageNotFound
}

// --- notifier ---

type publishedEvent struct {
	Channel string
	Type    string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(channel, eventType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{Channel: channel, Type: eventType, Payload: payload})
}

func (n *recordingNotifier) Revoke(channel string, userID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{Channel: channel, Type: realtime.EventAccessRevoked, Payload: userID})
}

// revoked returns the users whose subscriptions on channel were dropped.
func (n *recordingNotifier) revoked(channel string) []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int
	for _, e := range n.events {
		if e.Type == realtime.EventAccessRevoked && e.Channel == channel {
			out = append(out, e.Payload.(int))
		}
	}
	return out
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}
