package sandbox

import "testing"

func TestDiffTail_EmptyPrevReturnsWhole(t *testing.T) {
	if got := diffTail("", "line1\nline2\n"); got != "line1\nline2\n" {
		t.Fatalf("diffTail() = %q", got)
	}
}

func TestDiffTail_ReturnsOnlyNewContent(t *testing.T) {
	prev := "line1\nline2\n"
	next := "line1\nline2\nline3\nline4\n"
	got := diffTail(prev, next)
	if got != "line3\nline4\n" {
		t.Fatalf("diffTail() = %q, want %q", got, "line3\nline4\n")
	}
}

func TestDiffTail_NoNewContentReturnsEmpty(t *testing.T) {
	same := "line1\nline2\n"
	if got := diffTail(same, same); got != "" {
		t.Fatalf("diffTail() = %q, want empty", got)
	}
}

func TestDiffTail_AnchorNotFoundReturnsWhole(t *testing.T) {
	prev := "stale line that got rotated out\n"
	next := "brand new log file\nwith different content\n"
	got := diffTail(prev, next)
	if got != next {
		t.Fatalf("diffTail() = %q, want whole next %q", got, next)
	}
}

func TestTruncateTail_UnderLimitUnchanged(t *testing.T) {
	s := "short log"
	if got := truncateTail(s); got != s {
		t.Fatalf("truncateTail() = %q, want unchanged", got)
	}
}

func TestTruncateTail_OverLimitKeepsEnd(t *testing.T) {
	s := make([]byte, MaxLogTailChars+100)
	for i := range s {
		s[i] = 'a'
	}
	copy(s[len(s)-5:], "ZZZZZ")
	got := truncateTail(string(s))
	if len(got) != MaxLogTailChars {
		t.Fatalf("truncateTail() length = %d, want %d", len(got), MaxLogTailChars)
	}
	if got[len(got)-5:] != "ZZZZZ" {
		t.Fatalf("truncateTail() should keep the tail end, got suffix %q", got[len(got)-5:])
	}
}
