package forward

import (
	"io"
	"net/http"
)

// CopyStream copies resp.Body to w byte-for-byte, flushing after every
// read so server-sent-event framing reaches the client without being
// buffered or re-chunked.
func CopyStream(w io.Writer, flusher http.Flusher, resp *http.Response) error {
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
