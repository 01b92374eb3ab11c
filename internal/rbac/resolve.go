// Package rbac resolves a sender's role and decides tool access under a
// loaded policy.Policy.
package rbac

import "github.com/triage-ai/rbacgate/internal/policy"

// ResolveRole maps (peerID, channel) to a role name under first-match
// semantics: the first role in declared order whose users and channels
// both match wins; if none match, the policy's default role is returned.
// channel == "" means the session key carried no channel segment.
func ResolveRole(pol *policy.Policy, peerID, channel string) string {
	for _, r := range pol.Roles {
		if !r.Spec.Users.Contains(peerID) {
			continue
		}
		if !channelsMatch(r.Spec.Channels, channel) {
			continue
		}
		return r.Name
	}
	return pol.DefaultRole
}

func channelsMatch(channels policy.StringSet, channel string) bool {
	if channels.Wildcard {
		return true
	}
	if channel == "" {
		return false
	}
	return channels.Contains(channel)
}
