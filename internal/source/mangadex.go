package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
)

const MangaDexID int64 = 2499283573021220255

// MangaDex resolves chapter pages through the at-home server endpoint.
type MangaDex struct {
	client  *Client
	baseURL string
}

func NewMangaDex(client *Client, baseURL string) *MangaDex {
	if baseURL == "" {
		baseURL = constants.DefaultMangaDexURL
	}
	if client == nil {
		client = NewClient(nil, constants.DefaultSourceRPS)
	}
	return &MangaDex{client: client, baseURL: baseURL}
}

func (m *MangaDex) ID() int64 { return MangaDexID }

func (m *MangaDex) Name() string { return "MangaDex" }

func (m *MangaDex) Primary() bool { return true }

func (m *MangaDex) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (m *MangaDex) GetPageList(ctx context.Context, chapter *domain.Chapter) ([]domain.Page, error) {
	if chapter.RemoteID == "" {
		return nil, fmt.Errorf("chapter %d has no remote id", chapter.ID)
	}
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.get(ctx, "/at-home/server/"+chapter.RemoteID, &server); err != nil {
		return nil, err
	}
	pages := make([]domain.Page, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = domain.Page{
			Index: i,
			URL:   fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file),
			State: domain.PageQueued,
		}
	}
	return pages, nil
}

func (m *MangaDex) FetchImage(ctx context.Context, page domain.Page) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.URL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %d fetching page %d", resp.StatusCode, page.Index)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
