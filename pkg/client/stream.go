package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/taskflow/backend/domain"
)

// ErrStopStream can be returned by a Subscribe callback to end the stream
// without reporting an error.
var ErrStopStream = errors.New("stop stream")

// Subscribe opens the realtime stream for channels and calls fn for every
// event until ctx is cancelled, the server closes the stream or fn fails.
func (c *Client) Subscribe(ctx context.Context, channels []string, fn func(domain.Event) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	q := url.Values{"channels": {strings.Join(channels, ",")}}
	req.SetRequestURI(c.baseURL + "/api/v1/realtime?" + q.Encode())
	req.Header.SetMethod(http.MethodGet)
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if err := c.stream.Do(req, resp); err != nil {
		return fmt.Errorf("open realtime stream: %w", err)
	}

	var once sync.Once
	closeBody := func() { once.Do(func() { _ = resp.CloseBodyStream() }) }
	defer closeBody()

	body := responseBody(resp)
	if resp.StatusCode() != http.StatusOK {
		raw, _ := io.ReadAll(body)
		return decode(resp.StatusCode(), raw, nil)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeBody()
		case <-done:
		}
	}()

	err := ReadEvents(body, fn)
	switch {
	case errors.Is(err, ErrStopStream):
		return nil
	case ctx.Err() != nil:
		return nil
	}
	return err
}

func responseBody(resp *fasthttp.Response) io.Reader {
	if stream := resp.BodyStream(); stream != nil {
		return stream
	}
	return bytes.NewReader(resp.Body())
}

// ReadEvents parses a Server-Sent Events stream whose data lines carry JSON
// encoded events. Comment lines are ignored; multi-line data is joined.
func ReadEvents(r io.Reader, fn func(domain.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data bytes.Buffer
	flush := func() error {
		if data.Len() == 0 {
			return nil
		}
		defer data.Reset()
		var ev domain.Event
		if err := json.Unmarshal(data.Bytes(), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}
