package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"convsync/auth"
	"convsync/contract"
	"convsync/domain"
)

// HTTPGateway is the request/response half of the backend contract.
// Callers bound every call through the passed context; the underlying
// http.Client carries no timeout of its own.
type HTTPGateway struct {
	baseURL string
	token   string
	self    auth.Identity
	client  *http.Client
}

func NewHTTPGateway(baseURL, token string, self auth.Identity) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		self:    self,
		client:  &http.Client{},
	}
}

var _ contract.Gateway = (*HTTPGateway)(nil)

func (g *HTTPGateway) FetchMessages(ctx context.Context, conv domain.ConversationID, offset, limit int) (domain.Page, error) {
	path := fmt.Sprintf("/api/conversations/%s/messages?offset=%d&limit=%d",
		url.PathEscape(string(conv)), offset, limit)

	var page wirePage
	if err := g.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return domain.Page{}, err
	}
	return toPage(page, g.self), nil
}

func (g *HTTPGateway) SendMessage(ctx context.Context, conv domain.ConversationID, req contract.SendRequest) (domain.Message, error) {
	body := struct {
		Text       string          `json:"text"`
		ClientRef  string          `json:"client_ref,omitempty"`
		ReplyToID  string          `json:"reply_to_id,omitempty"`
		Attachment *wireAttachment `json:"attachment,omitempty"`
	}{
		Text:       req.Text,
		ClientRef:  req.TempID,
		ReplyToID:  req.ReplyToID,
		Attachment: toWireAttachment(req.Attachment),
	}

	var msg wireMessage
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(string(conv)))
	if err := g.do(ctx, http.MethodPost, path, body, &msg); err != nil {
		return domain.Message{}, err
	}
	return toMessage(msg, g.self), nil
}

func (g *HTTPGateway) EditMessage(ctx context.Context, messageID, newText string) (domain.Message, error) {
	body := struct {
		Text string `json:"text"`
	}{Text: newText}

	var msg wireMessage
	path := fmt.Sprintf("/api/messages/%s", url.PathEscape(messageID))
	if err := g.do(ctx, http.MethodPatch, path, body, &msg); err != nil {
		return domain.Message{}, err
	}
	return toMessage(msg, g.self), nil
}

func (g *HTTPGateway) DeleteMessage(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/api/messages/%s", url.PathEscape(messageID))
	return g.do(ctx, http.MethodDelete, path, nil, nil)
}

func (g *HTTPGateway) AddReaction(ctx context.Context, messageID, emoji string) error {
	body := struct {
		Emoji string `json:"emoji"`
	}{Emoji: emoji}

	path := fmt.Sprintf("/api/messages/%s/reactions", url.PathEscape(messageID))
	return g.do(ctx, http.MethodPost, path, body, nil)
}

func (g *HTTPGateway) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	path := fmt.Sprintf("/api/messages/%s/reactions/%s",
		url.PathEscape(messageID), url.PathEscape(emoji))
	return g.do(ctx, http.MethodDelete, path, nil, nil)
}

func (g *HTTPGateway) MarkRead(ctx context.Context, conv domain.ConversationID) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	path := fmt.Sprintf("/api/conversations/%s/read", url.PathEscape(string(conv)))
	if err := g.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

func (g *HTTPGateway) FetchMessageByID(ctx context.Context, messageID string) (domain.Message, error) {
	var msg wireMessage
	path := fmt.Sprintf("/api/messages/%s", url.PathEscape(messageID))
	if err := g.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return domain.Message{}, err
	}
	return toMessage(msg, g.self), nil
}

func (g *HTTPGateway) UploadAttachment(ctx context.Context, upload domain.FileUpload) (domain.Attachment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", upload.Name)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("upload %s: %w", upload.Name, err)
	}
	if _, err = part.Write(upload.Content); err != nil {
		return domain.Attachment{}, fmt.Errorf("upload %s: %w", upload.Name, err)
	}
	if err = writer.Close(); err != nil {
		return domain.Attachment{}, fmt.Errorf("upload %s: %w", upload.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/uploads", &buf)
	if err != nil {
		return domain.Attachment{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("upload %s: %w", upload.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Attachment{}, fmt.Errorf("upload %s: unexpected status %d", upload.Name, resp.StatusCode)
	}

	var att wireAttachment
	if err = json.NewDecoder(resp.Body).Decode(&att); err != nil {
		return domain.Attachment{}, fmt.Errorf("upload %s: decode response: %w", upload.Name, err)
	}
	return domain.Attachment{URL: att.URL, Name: att.Name, Size: att.Size, Type: att.Type}, nil
}

// do performs one JSON round trip. A nil out discards the response body.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
