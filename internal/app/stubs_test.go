package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"membership_compliance_bot/internal/domain/compliance"
	"membership_compliance_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeGateway implements the domain Gateway against in-memory state. A
// successful RemoveMember drops the user from the member list, mirroring how
// live re-enumeration excludes kicked users.
type fakeGateway struct {
	members     map[int64][]*member.Member
	admins      map[int64][]int64
	membersErr  error
	adminsErr   error
	sendErrTo   map[int64]error
	removeErrTo map[int64]error
	sent        map[int64][]string
	removed     []int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		members:     make(map[int64][]*member.Member),
		admins:      make(map[int64][]int64),
		sendErrTo:   make(map[int64]error),
		removeErrTo: make(map[int64]error),
		sent:        make(map[int64][]string),
	}
}

func (g *fakeGateway) GroupMembers(_ context.Context, groupID int64) ([]*member.Member, error) {
	if g.membersErr != nil {
		return nil, g.membersErr
	}
	out := make([]*member.Member, len(g.members[groupID]))
	copy(out, g.members[groupID])
	return out, nil
}

func (g *fakeGateway) GroupAdmins(_ context.Context, groupID int64) ([]int64, error) {
	if g.adminsErr != nil {
		return nil, g.adminsErr
	}
	return g.admins[groupID], nil
}

func (g *fakeGateway) SendMessage(_ context.Context, userID int64, text string) error {
	if err := g.sendErrTo[userID]; err != nil {
		return err
	}
	g.sent[userID] = append(g.sent[userID], text)
	return nil
}

func (g *fakeGateway) RemoveMember(_ context.Context, groupID, userID int64) error {
	if err := g.removeErrTo[userID]; err != nil {
		return err
	}
	kept := g.members[groupID][:0]
	for _, m := range g.members[groupID] {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	g.members[groupID] = kept
	g.removed = append(g.removed, userID)
	return nil
}

// stubOptIn answers IsDmReady from a fixed set.
type stubOptIn struct {
	ready map[int64]bool
	err   error
}

func (s *stubOptIn) IsDmReady(_ context.Context, userID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ready[userID], nil
}

// stubChecker answers exemption checks from a fixed set.
type stubChecker struct {
	exempt map[int64]bool
	err    error
}

func (s *stubChecker) IsExempt(_ context.Context, userID, _ int64, _ time.Time) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.exempt[userID], nil
}

// stubLedger serves fixed records, falling back to zero records like the
// real ledger service.
type stubLedger struct {
	records map[int64]*compliance.RequirementRecord // by user
}

func (s *stubLedger) GetRecord(_ context.Context, groupID, userID int64, monthKey string) (*compliance.RequirementRecord, error) {
	if rec, ok := s.records[userID]; ok {
		return rec, nil
	}
	return compliance.ZeroRecord(groupID, userID, monthKey), nil
}

// staticRoles resolves privilege from a fixed set and never errors.
type staticRoles struct {
	operators  map[int64]bool
	privileged map[int64]struct{}
	err        error
}

func (s *staticRoles) IsOperator(userID int64) bool { return s.operators[userID] }

func (s *staticRoles) PrivilegedSet(context.Context, int64) (map[int64]struct{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.privileged, nil
}

func groupOf(groupID int64, userIDs ...int64) []*member.Member {
	members := make([]*member.Member, 0, len(userIDs))
	for _, id := range userIDs {
		members = append(members, &member.Member{
			GroupID:   groupID,
			UserID:    id,
			FirstName: fmt.Sprintf("user%d", id),
		})
	}
	return members
}
