package encoder

import (
	"bytes"
	"strconv"
	"strings"
)

// progressParser accumulates key=value lines from `-progress pipe:1` and emits one
// Progress per block. A block ends with a progress=continue|end line.
type progressParser struct {
	total   float64
	current Progress
}

func newProgressParser(total float64) *progressParser {
	return &progressParser{total: total}
}

func (p *progressParser) feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.current.Position = float64(us) / 1e6
		}
	case "out_time":
		if secs, ok := parseClock(value); ok {
			p.current.Position = secs
		}
	case "speed":
		p.current.Speed = value
	case "progress":
		out := p.current
		out.Done = value == "end"
		if out.Done && p.total > 0 {
			out.Position = p.total
		}
		out.Percent = percent(out.Position, p.total)
		p.current = Progress{Position: out.Position}
		return out, true
	}
	return Progress{}, false
}

func percent(position, total float64) float64 {
	if total <= 0 {
		return 0
	}
	pct := position / total * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// parseClock parses HH:MM:SS.micro as produced by ffmpeg.
func parseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 {
		return 0, false
	}
	return float64(h)*3600 + float64(m)*60 + sec, true
}

// lineWriter splits written bytes into lines and hands each complete line to fn.
type lineWriter struct {
	buf bytes.Buffer
	fn  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.fn(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.fn(w.buf.String())
		w.buf.Reset()
	}
}
