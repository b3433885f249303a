package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"recruit-pipeline/internal/types"
)

// memStore 内存版 Store，事务通过快照回滚实现
type memStore struct {
	cycles     []types.RecruitmentCycle
	rounds     []types.RecruitmentRound
	applicants []types.Applicant
	ars        []types.ApplicantRound
	metrics    []types.Metric
	scores     []types.Score
	comments   []types.Comment
	sessions   []types.DelibsSession
	votes      []types.DelibsVote
	events     []types.PipelineEvent
	readings   map[string]int
	members    map[string]map[string]types.Role
	users      map[string]string

	// failures 让指定方法返回错误，用于验证回滚
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		readings: map[string]int{},
		members:  map[string]map[string]types.Role{},
		users:    map[string]string{},
		failures: map[string]error{},
	}
}

func (m *memStore) fail(method string) error {
	return m.failures[method]
}

type memSnapshot struct {
	cycles     []types.RecruitmentCycle
	rounds     []types.RecruitmentRound
	applicants []types.Applicant
	ars        []types.ApplicantRound
	metrics    []types.Metric
	scores     []types.Score
	comments   []types.Comment
	sessions   []types.DelibsSession
	votes      []types.DelibsVote
	events     []types.PipelineEvent
}

func (m *memStore) snapshot() memSnapshot {
	return memSnapshot{
		cycles:     append([]types.RecruitmentCycle(nil), m.cycles...),
		rounds:     append([]types.RecruitmentRound(nil), m.rounds...),
		applicants: append([]types.Applicant(nil), m.applicants...),
		ars:        append([]types.ApplicantRound(nil), m.ars...),
		metrics:    append([]types.Metric(nil), m.metrics...),
		scores:     append([]types.Score(nil), m.scores...),
		comments:   append([]types.Comment(nil), m.comments...),
		sessions:   append([]types.DelibsSession(nil), m.sessions...),
		votes:      append([]types.DelibsVote(nil), m.votes...),
		events:     append([]types.PipelineEvent(nil), m.events...),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.cycles, m.rounds, m.applicants, m.ars = s.cycles, s.rounds, s.applicants, s.ars
	m.metrics, m.scores, m.comments = s.metrics, s.scores, s.comments
	m.sessions, m.votes, m.events = s.sessions, s.votes, s.events
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ---- cycles & rounds ----

func (m *memStore) GetCycle(_ context.Context, id string) (*types.RecruitmentCycle, error) {
	for _, c := range m.cycles {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) DeleteCycle(_ context.Context, id string) error {
	if err := m.fail("DeleteCycle"); err != nil {
		return err
	}
	out := m.cycles[:0:0]
	for _, c := range m.cycles {
		if c.ID != id {
			out = append(out, c)
		}
	}
	m.cycles = out
	return nil
}

func (m *memStore) CountApplicantsInCycle(_ context.Context, cycleID string) (int64, error) {
	var n int64
	for _, a := range m.applicants {
		if a.RecruitmentCycleID == cycleID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetRound(_ context.Context, id string) (*types.RecruitmentRound, error) {
	if err := m.fail("GetRound"); err != nil {
		return nil, err
	}
	for _, r := range m.rounds {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) CreateRound(_ context.Context, r *types.RecruitmentRound) error {
	m.rounds = append(m.rounds, *r)
	return nil
}

func (m *memStore) DeleteRound(_ context.Context, id string) error {
	out := m.rounds[:0:0]
	for _, r := range m.rounds {
		if r.ID != id {
			out = append(out, r)
		}
	}
	m.rounds = out
	return nil
}

func (m *memStore) CountRounds(_ context.Context, cycleID string) (int64, error) {
	var n int64
	for _, r := range m.rounds {
		if r.RecruitmentCycleID == cycleID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MaxSortOrder(_ context.Context, cycleID string) (int, bool, error) {
	maxOrder, ok := 0, false
	for _, r := range m.rounds {
		if r.RecruitmentCycleID != cycleID {
			continue
		}
		if !ok || r.SortOrder > maxOrder {
			maxOrder, ok = r.SortOrder, true
		}
	}
	return maxOrder, ok, nil
}

func (m *memStore) roundsAfter(cycleID string, after int) []types.RecruitmentRound {
	var out []types.RecruitmentRound
	for _, r := range m.rounds {
		if r.RecruitmentCycleID == cycleID && r.SortOrder > after {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

func (m *memStore) NextRound(_ context.Context, cycleID string, after int) (*types.RecruitmentRound, error) {
	later := m.roundsAfter(cycleID, after)
	if len(later) == 0 {
		return nil, ErrRecordNotFound
	}
	return &later[0], nil
}

func (m *memStore) ListRoundsAfter(_ context.Context, cycleID string, after int) ([]types.RecruitmentRound, error) {
	return m.roundsAfter(cycleID, after), nil
}

func (m *memStore) UpdateRoundSortOrder(_ context.Context, id string, sortOrder int) error {
	if err := m.fail("UpdateRoundSortOrder:" + id); err != nil {
		return err
	}
	for i := range m.rounds {
		if m.rounds[i].ID == id {
			m.rounds[i].SortOrder = sortOrder
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) CountAnonymousReadings(_ context.Context, roundID string) (int64, error) {
	return int64(m.readings[roundID]), nil
}

// ---- applicants ----

func (m *memStore) GetApplicant(_ context.Context, id string) (*types.Applicant, error) {
	for _, a := range m.applicants {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) ListApplicantsByIDs(_ context.Context, ids []string) ([]types.Applicant, error) {
	var out []types.Applicant
	for _, a := range m.applicants {
		if contains(ids, a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) DeleteApplicant(_ context.Context, id string) error {
	if err := m.fail("DeleteApplicant"); err != nil {
		return err
	}
	out := m.applicants[:0:0]
	for _, a := range m.applicants {
		if a.ID != id {
			out = append(out, a)
		}
	}
	m.applicants = out
	return nil
}

// ---- applicant rounds ----

func (m *memStore) GetApplicantRound(_ context.Context, id string) (*types.ApplicantRound, error) {
	for _, ar := range m.ars {
		if ar.ID == id {
			ar := ar
			return &ar, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) FindApplicantRound(_ context.Context, applicantID, roundID string) (*types.ApplicantRound, error) {
	for _, ar := range m.ars {
		if ar.ApplicantID == applicantID && ar.RecruitmentRoundID == roundID {
			ar := ar
			return &ar, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) ListApplicantRoundsByRound(_ context.Context, roundID string) ([]types.ApplicantRound, error) {
	var out []types.ApplicantRound
	for _, ar := range m.ars {
		if ar.RecruitmentRoundID == roundID {
			out = append(out, ar)
		}
	}
	return out, nil
}

func (m *memStore) ListApplicantRoundsByApplicant(_ context.Context, applicantID string) ([]types.ApplicantRound, error) {
	var out []types.ApplicantRound
	for _, ar := range m.ars {
		if ar.ApplicantID == applicantID {
			out = append(out, ar)
		}
	}
	return out, nil
}

func (m *memStore) CountApplicantRoundsByRound(ctx context.Context, roundID string) (int64, error) {
	ars, _ := m.ListApplicantRoundsByRound(ctx, roundID)
	return int64(len(ars)), nil
}

func (m *memStore) CreateApplicantRound(_ context.Context, ar *types.ApplicantRound) error {
	if err := m.fail("CreateApplicantRound"); err != nil {
		return err
	}
	for _, existing := range m.ars {
		if existing.ApplicantID == ar.ApplicantID && existing.RecruitmentRoundID == ar.RecruitmentRoundID {
			return fmt.Errorf("duplicate applicant round (%s, %s)", ar.ApplicantID, ar.RecruitmentRoundID)
		}
	}
	m.ars = append(m.ars, *ar)
	return nil
}

func (m *memStore) UpdateApplicantRoundStatus(_ context.Context, id string, status types.ApplicantRoundStatus, at time.Time) error {
	for i := range m.ars {
		if m.ars[i].ID == id {
			m.ars[i].Status = status
			m.ars[i].UpdatedAt = at
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) SetWeightedScore(_ context.Context, id string, score *float64) error {
	for i := range m.ars {
		if m.ars[i].ID == id {
			if score == nil {
				m.ars[i].WeightedScore = nil
			} else {
				v := *score
				m.ars[i].WeightedScore = &v
			}
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) DeleteApplicantRounds(_ context.Context, ids []string) error {
	out := m.ars[:0:0]
	for _, ar := range m.ars {
		if !contains(ids, ar.ID) {
			out = append(out, ar)
		}
	}
	m.ars = out
	return nil
}

// ---- metrics ----

func (m *memStore) ListMetricsByRound(_ context.Context, roundID string) ([]types.Metric, error) {
	var out []types.Metric
	for _, mt := range m.metrics {
		if mt.RecruitmentRoundID == roundID {
			out = append(out, mt)
		}
	}
	return out, nil
}

func (m *memStore) DeleteMetricsByRound(_ context.Context, roundID string) error {
	out := m.metrics[:0:0]
	for _, mt := range m.metrics {
		if mt.RecruitmentRoundID != roundID {
			out = append(out, mt)
		}
	}
	m.metrics = out
	return nil
}

func (m *memStore) CreateMetrics(_ context.Context, metrics []types.Metric) error {
	if err := m.fail("CreateMetrics"); err != nil {
		return err
	}
	m.metrics = append(m.metrics, metrics...)
	return nil
}

// ---- scores ----

func (m *memStore) CreateScores(_ context.Context, scores []types.Score) error {
	m.scores = append(m.scores, scores...)
	return nil
}

func (m *memStore) GetScore(_ context.Context, id string) (*types.Score, error) {
	for _, s := range m.scores {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) UpdateScoreValue(_ context.Context, id string, value float64) error {
	for i := range m.scores {
		if m.scores[i].ID == id {
			m.scores[i].ScoreValue = value
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) joinRows(match func(types.Score) bool) []types.ScoreRow {
	var out []types.ScoreRow
	for _, s := range m.scores {
		if !match(s) {
			continue
		}
		row := types.ScoreRow{Score: s}
		for _, mt := range m.metrics {
			if mt.ID == s.MetricID {
				row.MetricName = mt.Name
				row.MetricWeight = mt.Weight
			}
		}
		out = append(out, row)
	}
	return out
}

func (m *memStore) ListScoreRows(_ context.Context, applicantRoundID string) ([]types.ScoreRow, error) {
	return m.joinRows(func(s types.Score) bool { return s.ApplicantRoundID == applicantRoundID }), nil
}

func (m *memStore) ListScoreRowsBySubmission(_ context.Context, submissionID string) ([]types.ScoreRow, error) {
	return m.joinRows(func(s types.Score) bool { return s.SubmissionID == submissionID }), nil
}

func (m *memStore) ListLegacyScoreRows(_ context.Context, applicantRoundID, userID string, createdAt time.Time) ([]types.ScoreRow, error) {
	return m.joinRows(func(s types.Score) bool {
		return s.ApplicantRoundID == applicantRoundID && s.UserID == userID && s.CreatedAt.Equal(createdAt)
	}), nil
}

func (m *memStore) ScoresExist(_ context.Context, applicantRoundIDs []string) (bool, error) {
	for _, s := range m.scores {
		if contains(applicantRoundIDs, s.ApplicantRoundID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteScoresBySubmission(_ context.Context, submissionID string) error {
	out := m.scores[:0:0]
	for _, s := range m.scores {
		if s.SubmissionID != submissionID {
			out = append(out, s)
		}
	}
	m.scores = out
	return nil
}

func (m *memStore) DeleteScoresByApplicantRounds(_ context.Context, ids []string) error {
	out := m.scores[:0:0]
	for _, s := range m.scores {
		if !contains(ids, s.ApplicantRoundID) {
			out = append(out, s)
		}
	}
	m.scores = out
	return nil
}

// ---- comments ----

func (m *memStore) CreateComment(_ context.Context, c *types.Comment) error {
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memStore) GetComment(_ context.Context, id string) (*types.Comment, error) {
	for _, c := range m.comments {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) UpdateCommentText(_ context.Context, id, text string, at time.Time) error {
	for i := range m.comments {
		if m.comments[i].ID == id {
			m.comments[i].CommentText = text
			t := at
			m.comments[i].UpdatedAt = &t
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) DeleteComment(_ context.Context, id string) error {
	out := m.comments[:0:0]
	for _, c := range m.comments {
		if c.ID != id {
			out = append(out, c)
		}
	}
	m.comments = out
	return nil
}

func (m *memStore) ListComments(_ context.Context, applicantRoundID string) ([]types.Comment, error) {
	var out []types.Comment
	for _, c := range m.comments {
		if c.ApplicantRoundID == applicantRoundID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteCommentsByApplicantRounds(_ context.Context, ids []string) error {
	out := m.comments[:0:0]
	for _, c := range m.comments {
		if !contains(ids, c.ApplicantRoundID) {
			out = append(out, c)
		}
	}
	m.comments = out
	return nil
}

// ---- delibs ----

func (m *memStore) FindSession(_ context.Context, roundID string) (*types.DelibsSession, error) {
	for _, s := range m.sessions {
		if s.RecruitmentRoundID == roundID {
			s := s
			return &s, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memStore) CreateSessionIfAbsent(_ context.Context, s *types.DelibsSession) error {
	for _, existing := range m.sessions {
		if existing.RecruitmentRoundID == s.RecruitmentRoundID {
			return nil
		}
	}
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *memStore) UpdateSessionStatus(_ context.Context, id string, status types.DelibsSessionStatus, at time.Time) error {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			m.sessions[i].Status = status
			m.sessions[i].UpdatedAt = at
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memStore) DeleteSessionByRound(_ context.Context, roundID string) error {
	out := m.sessions[:0:0]
	for _, s := range m.sessions {
		if s.RecruitmentRoundID != roundID {
			out = append(out, s)
		}
	}
	m.sessions = out
	return nil
}

func (m *memStore) UpsertVote(_ context.Context, v *types.DelibsVote) error {
	for i := range m.votes {
		e := m.votes[i]
		if e.DelibsSessionID == v.DelibsSessionID && e.VoterUserID == v.VoterUserID && e.ApplicantRoundID == v.ApplicantRoundID {
			m.votes[i].VoteValue = v.VoteValue
			m.votes[i].UpdatedAt = v.UpdatedAt
			return nil
		}
	}
	m.votes = append(m.votes, *v)
	return nil
}

func (m *memStore) ListVotes(_ context.Context, sessionID string) ([]types.DelibsVote, error) {
	var out []types.DelibsVote
	for _, v := range m.votes {
		if v.DelibsSessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) DeleteVotesByApplicantRounds(_ context.Context, ids []string) error {
	out := m.votes[:0:0]
	for _, v := range m.votes {
		if !contains(ids, v.ApplicantRoundID) {
			out = append(out, v)
		}
	}
	m.votes = out
	return nil
}

// ---- membership ----

func (m *memStore) GetRole(_ context.Context, orgID, userID string) (types.Role, error) {
	role, ok := m.members[orgID][userID]
	if !ok {
		return "", ErrRecordNotFound
	}
	return role, nil
}

func (m *memStore) CountMembers(_ context.Context, orgID string) (int64, error) {
	return int64(len(m.members[orgID])), nil
}

func (m *memStore) GetUserNames(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := m.users[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// ---- events ----

func (m *memStore) AppendEvent(_ context.Context, e types.PipelineEvent) error {
	m.events = append(m.events, e)
	return nil
}

// ---- fixtures ----

func (m *memStore) addMember(orgID, userID, name string, role types.Role) {
	if m.members[orgID] == nil {
		m.members[orgID] = map[string]types.Role{}
	}
	m.members[orgID][userID] = role
	m.users[userID] = name
}

func (m *memStore) eventTypes() []string {
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

func (m *memStore) applicantRoundsFor(applicantID string) []types.ApplicantRound {
	ars, _ := m.ListApplicantRoundsByApplicant(context.Background(), applicantID)
	return ars
}

// testClock 每次调用前进一秒，保证提交时间有序
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

// seqIDs 生成可预测的 ID
type seqIDs struct {
	n int
}

func (s *seqIDs) next() string {
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

// fixture 一个组织、一个周期、四个轮次 (sort_order 0..3)、两名申请人
type fixture struct {
	store  *memStore
	engine *Engine
	clock  *testClock
}

func newFixture(opts ...Option) *fixture {
	st := newMemStore()
	st.cycles = []types.RecruitmentCycle{{ID: "cycle-1", OrganizationID: "org-1", Name: "2026 秋招"}}
	st.rounds = []types.RecruitmentRound{
		{ID: "r0", RecruitmentCycleID: "cycle-1", Name: "简历筛选", SortOrder: 0},
		{ID: "r1", RecruitmentCycleID: "cycle-1", Name: "笔试", SortOrder: 1},
		{ID: "r2", RecruitmentCycleID: "cycle-1", Name: "面试", SortOrder: 2},
		{ID: "r3", RecruitmentCycleID: "cycle-1", Name: "终面", SortOrder: 3},
	}
	st.applicants = []types.Applicant{
		{ID: "app-alice", RecruitmentCycleID: "cycle-1", Name: "Alice", HeadshotURL: "headshots/alice.png"},
		{ID: "app-bob", RecruitmentCycleID: "cycle-1", Name: "Bob"},
	}
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	st.ars = []types.ApplicantRound{
		{ID: "ar-alice-r0", ApplicantID: "app-alice", RecruitmentRoundID: "r0", Status: types.StatusInProgress, CreatedAt: base, UpdatedAt: base},
		{ID: "ar-bob-r0", ApplicantID: "app-bob", RecruitmentRoundID: "r0", Status: types.StatusInProgress, CreatedAt: base, UpdatedAt: base},
	}
	st.addMember("org-1", "u-owner", "Owen", types.RoleOwner)
	st.addMember("org-1", "u-admin", "Ada", types.RoleAdmin)
	st.addMember("org-1", "u-member", "Mia", types.RoleMember)

	clock := &testClock{t: base}
	ids := &seqIDs{}
	all := append([]Option{WithClock(clock.now), WithIDGenerator(ids.next)}, opts...)
	return &fixture{store: st, engine: NewEngine(st, all...), clock: clock}
}
