package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/rudderlabs/bridge-exporter/utils/httputil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxErrorBodyLength = 4 << 10

var (
	// ErrNotReady is returned by async result calls while the job is still running.
	ErrNotReady = errors.New("async job not ready")
	// ErrNotFound is returned when the requested resource doesn't exist.
	ErrNotFound = errors.New("resource not found")
)

// Error is an unexpected HTTP response from the store.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid status code for %s: %d, body: %s", e.Op, e.StatusCode, e.Body)
}

type requestDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type API struct {
	clientURL   string
	authToken   string
	requestDoer requestDoer
}

func New(clientURL, authToken string, requestDoer requestDoer) *API {
	return &API{
		clientURL:   clientURL,
		authToken:   authToken,
		requestDoer: requestDoer,
	}
}

func (a *API) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.clientURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if a.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.authToken)
	}
	return req, nil
}

// doJSON sends reqBody (if any) as JSON and decodes a 200/201 response into resBody (if any).
func (a *API) doJSON(ctx context.Context, op, method, path string, reqBody, resBody any) error {
	var body io.Reader
	if reqBody != nil {
		reqJSON, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshalling %s request: %w", op, err)
		}
		body = bytes.NewReader(reqJSON)
	}

	req, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, reqErr := a.requestDoer.Do(req)
	if reqErr != nil {
		return fmt.Errorf("sending %s request: %w", op, reqErr)
	}
	defer func() { httputil.CloseResponse(resp) }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: httputil.ReadBodyLimited(resp, maxErrorBodyLength)}
	}

	if resBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(resBody); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// asyncGet fetches the result of an async job. The store answers 202 while the job is running.
func (a *API) asyncGet(ctx context.Context, op, path string, resBody any) error {
	req, err := a.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}

	resp, reqErr := a.requestDoer.Do(req)
	if reqErr != nil {
		return fmt.Errorf("sending %s request: %w", op, reqErr)
	}
	defer func() { httputil.CloseResponse(resp) }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted:
		return ErrNotReady
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: httputil.ReadBodyLimited(resp, maxErrorBodyLength)}
	}

	if err := json.NewDecoder(resp.Body).Decode(resBody); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

func (a *API) asyncStart(ctx context.Context, op, path string, reqBody any) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	if err := a.doJSON(ctx, op, http.MethodPost, path, reqBody, &res); err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", fmt.Errorf("%s: empty job token", op)
	}
	return res.Token, nil
}
