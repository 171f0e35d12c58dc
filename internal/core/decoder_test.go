package core

import (
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
)

func serialize(payloads []string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString(FramePrefix)
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

func feedAll(chunks []string) []Frame {
	d := NewFrameDecoder()
	var out []Frame
	for _, c := range chunks {
		out = append(out, d.Feed([]byte(c))...)
	}
	return out
}

func payloadsOf(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Payload)
	}
	return out
}

func TestFeedSingleChunk(t *testing.T) {
	frames := NewFrameDecoder().Feed([]byte("data: {\"info\":\"starting\"}\n\n"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Payload != `{"info":"starting"}` {
		t.Fatalf("unexpected payload %q", frames[0].Payload)
	}
}

func TestFeedKeepsPartialFrame(t *testing.T) {
	d := NewFrameDecoder()
	if frames := d.Feed([]byte(`data: {"email":"x@y.c`)); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if d.Pending() == 0 {
		t.Fatalf("expected pending bytes")
	}
	frames := d.Feed([]byte("om\",\"status\":\"Valid\"}\n\n"))
	if len(frames) != 1 || frames[0].Payload != `{"email":"x@y.com","status":"Valid"}` {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if d.Pending() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", d.Pending())
	}
}

func TestFeedBoundarySplitAcrossChunks(t *testing.T) {
	frames := feedAll([]string{"data: a\n", "\ndata: b\n", "\n"})
	if got := payloadsOf(frames); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected payloads %v", got)
	}
}

func TestFeedDiscardsCommentsAndKeepAlives(t *testing.T) {
	frames := feedAll([]string{": keep-alive\n\nevent: ping\n\ndata: a\n\n:\n\n"})
	if got := payloadsOf(frames); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("unexpected payloads %v", got)
	}
}

func TestFeedCRLFBoundaries(t *testing.T) {
	frames := feedAll([]string{"data: a\r\n\r", "\ndata: b\r\n\r\n"})
	if got := payloadsOf(frames); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected payloads %v", got)
	}
}

func TestFeedExtraBlankLines(t *testing.T) {
	frames := feedAll([]string{"data: a\n\n\ndata: b\n\n"})
	if got := payloadsOf(frames); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected payloads %v", got)
	}
}

func TestFeedMultiByteRuneSplit(t *testing.T) {
	stream := serialize([]string{`{"info":"vérification ✅"}`})
	cut := strings.Index(stream, "✅") + 1
	frames := feedAll([]string{stream[:cut], stream[cut:]})
	if len(frames) != 1 || frames[0].Payload != `{"info":"vérification ✅"}` {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestFinishDiscardsUnterminatedFrame(t *testing.T) {
	d := NewFrameDecoder()
	frames := d.Feed([]byte("data: a\n\ndata: b"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if rest := d.Finish(); rest != "data: b" {
		t.Fatalf("expected trailing remainder, got %q", rest)
	}
	if d.Pending() != 0 {
		t.Fatalf("expected buffer reset after Finish")
	}
}

func TestChunkBoundaryInvariance(t *testing.T) {
	payloads := []string{
		`{"info":"starting"}`,
		`{"email":"x@y.com","status":"Valid"}`,
		`{"email":"z@y.com","status":"Invalid-syntax"}`,
		`{"info":"done ✅"}`,
	}
	stream := serialize(payloads)

	// Every two-way and three-way split.
	for i := 1; i < len(stream); i++ {
		if got := payloadsOf(feedAll([]string{stream[:i], stream[i:]})); !reflect.DeepEqual(got, payloads) {
			t.Fatalf("split at %d: unexpected payloads %v", i, got)
		}
		for j := i + 1; j < len(stream); j++ {
			got := payloadsOf(feedAll([]string{stream[:i], stream[i:j], stream[j:]}))
			if !reflect.DeepEqual(got, payloads) {
				t.Fatalf("split at %d,%d: unexpected payloads %v", i, j, got)
			}
		}
	}

	// Random chunkings, including one byte at a time.
	rng := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		var chunks []string
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.IntN(8)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		if got := payloadsOf(feedAll(chunks)); !reflect.DeepEqual(got, payloads) {
			t.Fatalf("round %d: unexpected payloads %v", round, got)
		}
	}
}
