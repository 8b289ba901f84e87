package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"readquest-service/internal/domain"
)

// Client implements app.ProgressAPI against a WordPress REST backend that
// registers a `reading-progress` custom post type with meta fields. WordPress
// assigns its own post IDs, so the client keeps a (user, athlete) -> post ID
// map filled from List/Create responses; Update falls back to a fresh list
// when the mapping is cold. Every operation is safe to replay.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu      sync.Mutex
	postIDs map[string]int
}

// New builds a client for the given site. username/password are a WordPress
// user and application password sent as HTTP Basic auth.
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 15 * time.Second},
		postIDs:  make(map[string]int),
	}
}

type progressMeta struct {
	UserID           string `json:"user_id"`
	AthleteID        int    `json:"athlete_id"`
	AthleteName      string `json:"athlete_name"`
	StoryRead        bool   `json:"story_read"`
	QuizCompleted    bool   `json:"quiz_completed"`
	QuizScore        int    `json:"quiz_score"`
	TotalQuestions   int    `json:"total_questions"`
	CompletionDate   string `json:"completion_date"`
	TimeSpentReading int    `json:"time_spent_reading"`
}

type progressPost struct {
	ID     int          `json:"id,omitempty"`
	Title  string       `json:"title,omitempty"`
	Status string       `json:"status,omitempty"`
	Meta   progressMeta `json:"meta"`
}

func (c *Client) Create(ctx context.Context, record domain.ProgressRecord) error {
	post := progressPost{
		Title:  fmt.Sprintf("%s / %s", record.UserID, record.AthleteName),
		Status: "publish",
		Meta:   metaFromRecord(record),
	}

	var created progressPost
	if err := c.do(ctx, http.MethodPost, c.endpoint(), post, &created); err != nil {
		return fmt.Errorf("wordpress create: %w", err)
	}
	if created.ID != 0 {
		c.rememberPostID(record, created.ID)
	}
	return nil
}

func (c *Client) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("per_page", "100")

	var posts []progressPost
	if err := c.do(ctx, http.MethodGet, c.endpoint()+"?"+q.Encode(), nil, &posts); err != nil {
		return nil, fmt.Errorf("wordpress list: %w", err)
	}

	out := make([]domain.ProgressRecord, 0, len(posts))
	for _, post := range posts {
		rec := recordFromMeta(post.Meta)
		if rec.UserID != userID {
			continue
		}
		c.rememberPostID(rec, post.ID)
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, record domain.ProgressRecord) error {
	postID, ok := c.postIDFor(record)
	if !ok {
		// Cold mapping: re-list to learn the post ID for the key.
		if _, err := c.List(ctx, record.UserID); err != nil {
			return err
		}
		if postID, ok = c.postIDFor(record); !ok {
			return domain.ErrProgressNotFound
		}
	}

	post := progressPost{Meta: metaFromRecord(record)}
	if err := c.do(ctx, http.MethodPost, c.endpoint()+"/"+strconv.Itoa(postID), post, nil); err != nil {
		return fmt.Errorf("wordpress update: %w", err)
	}
	return nil
}

func (c *Client) endpoint() string {
	return c.baseURL + "/wp-json/wp/v2/reading-progress"
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) rememberPostID(record domain.ProgressRecord, postID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postIDs[domain.SyncKey(record.UserID, record.AthleteID)] = postID
}

func (c *Client) postIDFor(record domain.ProgressRecord) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.postIDs[domain.SyncKey(record.UserID, record.AthleteID)]
	return id, ok
}

func metaFromRecord(record domain.ProgressRecord) progressMeta {
	return progressMeta{
		UserID:           record.UserID,
		AthleteID:        record.AthleteID,
		AthleteName:      record.AthleteName,
		StoryRead:        record.StoryRead,
		QuizCompleted:    record.QuizCompleted,
		QuizScore:        record.QuizScore,
		TotalQuestions:   record.TotalQuestions,
		CompletionDate:   record.CompletionDate.UTC().Format(time.RFC3339),
		TimeSpentReading: record.TimeSpentReadingSeconds,
	}
}

func recordFromMeta(meta progressMeta) domain.ProgressRecord {
	completedAt, _ := time.Parse(time.RFC3339, meta.CompletionDate)
	return domain.ProgressRecord{
		UserID:                  meta.UserID,
		AthleteID:               meta.AthleteID,
		AthleteName:             meta.AthleteName,
		StoryRead:               meta.StoryRead,
		QuizCompleted:           meta.QuizCompleted,
		QuizScore:               meta.QuizScore,
		TotalQuestions:          meta.TotalQuestions,
		CompletionDate:          completedAt,
		TimeSpentReadingSeconds: meta.TimeSpentReading,
	}
}
