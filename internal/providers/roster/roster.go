// Package roster holds the ordered, fixed set of model providers that take
// part in a review.
package roster

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
)

var (
	ErrInvalidRoster   = apperrors.Sentinel(apperrors.ErrCodeInvalidRosterCfg, "invalid roster")
	ErrUnknownProvider = apperrors.Sentinel(apperrors.ErrCodeUnknownProvider, "unknown provider")
)

// Invoker sends a prompt to a model and returns its text reply.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Member is one roster entry. Name is the display name ("Claude"), its
// lowercase form is the provider key.
type Member struct {
	Name    string
	Invoker Invoker
}

// Key returns the member's provider key.
func (m Member) Key() string {
	return ProviderKey(m.Name)
}

// Roster is read-only after construction and safe for concurrent use.
type Roster struct {
	members []Member
	index   map[string]int
}

// ProviderKey is the lowercased provider name used in score maps and lookups.
func ProviderKey(name string) string {
	return strings.ToLower(name)
}

// New builds a roster from at least two members with distinct keys.
func New(members ...Member) (*Roster, error) {
	if len(members) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 members, got %d", ErrInvalidRoster, len(members))
	}

	r := &Roster{
		members: make([]Member, len(members)),
		index:   make(map[string]int, len(members)),
	}
	for i, m := range members {
		key := m.Key()
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: member %d has no name", ErrInvalidRoster, i)
		}
		if m.Invoker == nil {
			return nil, fmt.Errorf("%w: member %q has no invoker", ErrInvalidRoster, m.Name)
		}
		if _, dup := r.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate provider key %q", ErrInvalidRoster, key)
		}
		r.members[i] = m
		r.index[key] = i
	}
	return r, nil
}

// Size returns N.
func (r *Roster) Size() int {
	return len(r.members)
}

// Member returns the member at position i.
func (r *Roster) Member(i int) Member {
	return r.members[i]
}

// Members returns a copy of the members in roster order.
func (r *Roster) Members() []Member {
	return append([]Member(nil), r.members...)
}

// Keys returns the provider keys in roster order.
func (r *Roster) Keys() []string {
	keys := make([]string, len(r.members))
	for i, m := range r.members {
		keys[i] = m.Key()
	}
	return keys
}

// PeersOf returns the N-1 members other than i, starting just after i and
// wrapping around.
func (r *Roster) PeersOf(i int) []Member {
	n := len(r.members)
	peers := make([]Member, 0, n-1)
	for k := 1; k < n; k++ {
		peers = append(peers, r.members[(i+k)%n])
	}
	return peers
}

// Lookup resolves a member by name, case-insensitively.
func (r *Roster) Lookup(name string) (Member, int, error) {
	i, ok := r.index[ProviderKey(name)]
	if !ok {
		return Member{}, -1, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return r.members[i], i, nil
}
