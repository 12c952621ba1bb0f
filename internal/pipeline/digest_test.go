package pipeline

import "testing"

func TestTopicFingerprintPermutationInvariant(t *testing.T) {
	t.Parallel()

	base := []string{"aaa", "bbb", "ccc"}
	permutations := [][]string{
		{"aaa", "bbb", "ccc"},
		{"ccc", "aaa", "bbb"},
		{"bbb", "ccc", "aaa"},
		{"ccc", "bbb", "aaa"},
	}

	want := topicFingerprint(base)
	for _, perm := range permutations {
		if got := topicFingerprint(perm); got != want {
			t.Errorf("fingerprint(%v) = %s, want %s", perm, got, want)
		}
	}
}

func TestTopicFingerprintChangesWithMembership(t *testing.T) {
	t.Parallel()

	base := topicFingerprint([]string{"aaa", "bbb"})

	if topicFingerprint([]string{"aaa", "bbb", "ccc"}) == base {
		t.Error("adding an element must change the fingerprint")
	}
	if topicFingerprint([]string{"aaa", "xxx"}) == base {
		t.Error("changing an element must change the fingerprint")
	}
	if topicFingerprint([]string{"aaa"}) == base {
		t.Error("removing an element must change the fingerprint")
	}
}

func TestTopicFingerprintDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	hashes := []string{"zzz", "aaa"}
	topicFingerprint(hashes)
	if hashes[0] != "zzz" || hashes[1] != "aaa" {
		t.Errorf("input slice reordered: %v", hashes)
	}
}
