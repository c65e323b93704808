package encoder

import (
	"testing"
)

func TestProgressParser_Blocks(t *testing.T) {
	p := newProgressParser(10)

	lines := []string{
		"frame=12",
		"out_time_us=2500000",
		"speed=1.5x",
		"progress=continue",
		"out_time=00:00:05.000000",
		"progress=continue",
		"out_time_us=9900000",
		"progress=end",
	}

	var got []Progress
	for _, line := range lines {
		if pr, ok := p.feed(line); ok {
			got = append(got, pr)
		}
	}

	if len(got) != 3 {
		t.Fatalf("got %d progress blocks, want 3", len(got))
	}
	if got[0].Percent != 25 || got[0].Position != 2.5 || got[0].Speed != "1.5x" {
		t.Errorf("block 0 = %+v", got[0])
	}
	if got[1].Percent != 50 {
		t.Errorf("block 1 percent = %v, want 50", got[1].Percent)
	}
	if !got[2].Done || got[2].Percent != 100 || got[2].Position != 10 {
		t.Errorf("block 2 = %+v, want done at 100%%", got[2])
	}
}

func TestProgressParser_IgnoresGarbage(t *testing.T) {
	p := newProgressParser(4)
	for _, line := range []string{"", "nonsense", "out_time_us=N/A", "out_time=bad"} {
		if _, ok := p.feed(line); ok {
			t.Errorf("feed(%q) emitted progress", line)
		}
	}
	pr, ok := p.feed("progress=continue")
	if !ok || pr.Percent != 0 {
		t.Errorf("feed(progress) = %+v, %v", pr, ok)
	}
}

func TestPercent_Clamped(t *testing.T) {
	tests := []struct {
		pos, total, want float64
	}{
		{1, 4, 25},
		{-1, 4, 0},
		{8, 4, 100},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := percent(tt.pos, tt.total); got != tt.want {
			t.Errorf("percent(%v, %v) = %v, want %v", tt.pos, tt.total, got, tt.want)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:01.500000", 1.5, true},
		{"01:02:03", 3723, true},
		{"1:2", 0, false},
		{"-01:00:00", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseClock(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLineWriter_SplitsAcrossWrites(t *testing.T) {
	var lines []string
	w := &lineWriter{fn: func(s string) { lines = append(lines, s) }}

	w.Write([]byte("a=1\nb="))
	w.Write([]byte("2\r\nc"))
	w.flush()

	want := []string{"a=1", "b=2", "c"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}
