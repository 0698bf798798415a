package uploader

import "io"

// ProgressFunc receives byte-level transfer progress ticks.
type ProgressFunc func(sent, total int64)

// progressReader wraps the payload reader and reports cumulative bytes read.
// The HTTP transport pulls from it as the request body streams out, so ticks
// track what has actually been handed to the network stack.
type progressReader struct {
	reader io.Reader
	total  int64
	sent   int64
	report ProgressFunc
}

func newProgressReader(r io.Reader, total int64, report ProgressFunc) *progressReader {
	return &progressReader{reader: r, total: total, report: report}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.report != nil {
			p.report(p.sent, p.total)
		}
	}
	return n, err
}
