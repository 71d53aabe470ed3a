package powermeter

// mockSource is an in-memory ByteSource. Once the scripted data is exhausted
// it behaves like a serial port read timeout (0 bytes, nil error), or returns
// eofErr when set so loop tests terminate.
type mockSource struct {
	data    []byte
	chunk   int // max bytes returned per read; 0 = no limit
	eofErr  error
	closed  bool
	resets  int
}

func (m *mockSource) Read(p []byte) (int, error) {
	if len(m.data) == 0 {
		if m.eofErr != nil {
			return 0, m.eofErr
		}
		return 0, nil
	}
	n := len(p)
	if m.chunk > 0 && n > m.chunk {
		n = m.chunk
	}
	n = copy(p[:n], m.data)
	m.data = m.data[n:]
	return n, nil
}

func (m *mockSource) Close() error {
	m.closed = true
	return nil
}

func (m *mockSource) ResetInputBuffer() error {
	m.resets++
	return nil
}
