// Package rasp ходит в API расписания университета от имени провайдеров.
package rasp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/format"
	"github.com/Freeeeeet/rasp_bot/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	tokenPath       = "api/tokenauth"
	userInfoPath    = "api/UserInfo/Student"
	raspManagerPath = "api/RaspManager"
	lessonTypesPath = "api/RaspManager/LessonsTypes"
	studentListPath = "api/GroupManager/GetAllStudentSchoolX"
	publicRaspPath  = "api/Rasp"

	sessionStateValid = 1
	defaultCatalogTTL = 24 * time.Hour
)

// Options настройки клиента
type Options struct {
	Origin        string // например https://edu.donstu.ru/
	ReserveOrigin string // пусто - тот же Origin
	Location      *time.Location
	HTTPClient    *http.Client
	CatalogTTL    time.Duration
}

// Client клиент API расписания
type Client struct {
	origin        string
	reserveOrigin string
	loc           *time.Location
	httpClient    *http.Client
	tokens        TokenStore
	logger        *zap.Logger
	now           func() time.Time

	catalogMu        sync.Mutex
	catalog          []format.LessonType
	catalogFetchedAt time.Time
	catalogTTL       time.Duration
}

// NewClient создаёт клиент. tokens используется для сохранения обновлённых токенов провайдеров.
func NewClient(opts Options, tokens TokenStore, logger *zap.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	reserve := opts.ReserveOrigin
	if reserve == "" {
		reserve = opts.Origin
	}

	ttl := opts.CatalogTTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}

	return &Client{
		origin:        withSlash(opts.Origin),
		reserveOrigin: withSlash(reserve),
		loc:           loc,
		httpClient:    httpClient,
		tokens:        tokens,
		logger:        logger,
		now:           time.Now,
		catalogTTL:    ttl,
	}
}

// NewSession создаёт сессию провайдера
func (c *Client) NewSession(p *model.Provider) *Session {
	return newSession(c, c.tokens, p, c.logger)
}

// TryAuth проверяет логин и пароль и узнаёт студента и его траекторию обучения
func (c *Client) TryAuth(ctx context.Context, userName, password string) (*Account, error) {
	resp, err := c.exchange(ctx, userName, password)
	if err != nil {
		return nil, &AuthError{UserName: userName, Err: err}
	}

	token := resp.accessToken()
	if token == "" {
		return nil, &AuthError{UserName: userName, Err: fmt.Errorf("empty access token: %s", resp.Msg)}
	}

	studentID := -resp.Data.Data.ID

	var info userInfoResponse
	q := url.Values{"studentID": {strconv.FormatInt(studentID, 10)}}
	if err := c.getJSON(ctx, "user info", c.origin+userInfoPath+"?"+q.Encode(), token, &info); err != nil {
		return nil, &AuthError{UserName: userName, Err: err}
	}
	if info.Data.EliteEducationID == 0 {
		return nil, &AuthError{UserName: userName, Err: fmt.Errorf("no education space for student %d", studentID)}
	}

	return &Account{
		AccessToken: token,
		StudentID:   studentID,
		SpaceID:     info.Data.EliteEducationID,
	}, nil
}

// RaspList получает расписание студента за окно из двух месяцев.
// Месяцы запрашиваются параллельно, результат обрезается по границам окна.
func (c *Client) RaspList(ctx context.Context, p *model.Provider, spaceID, studentID int64, window model.Window) ([]model.Event, error) {
	token, err := c.NewSession(p).Token(ctx)
	if err != nil {
		return nil, err
	}

	formatter := format.NewFormatter(c.loc, c.lessonTypes(ctx, token))

	months := []time.Month{window.Start.In(c.loc).Month(), window.End.In(c.loc).Month()}
	results := make([][]format.Entry, len(months))

	g, gctx := errgroup.WithContext(ctx)
	for i, month := range months {
		g.Go(func() error {
			entries, err := c.fetchMonth(gctx, token, spaceID, studentID, month)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var events []model.Event
	for _, entries := range results {
		for _, entry := range entries {
			ev, err := formatter.Normalize(entry)
			if err != nil {
				c.logger.Warn("Skipping malformed rasp entry", zap.String("name", entry.Name), zap.Error(err))
				continue
			}
			if window.Contains(ev.Start) {
				events = append(events, ev)
			}
		}
	}

	return events, nil
}

func (c *Client) fetchMonth(ctx context.Context, token string, spaceID, studentID int64, month time.Month) ([]format.Entry, error) {
	q := url.Values{
		"showAll":           {"true"},
		"studentsIDs":       {strconv.FormatInt(studentID, 10)},
		"educationSpaceID":  {strconv.FormatInt(spaceID, 10)},
		"showJournalFilled": {"false"},
		"month":             {strconv.Itoa(int(month))},
	}

	var resp raspListResponse
	if err := c.getJSON(ctx, "rasp list", c.origin+raspManagerPath+"?"+q.Encode(), token, &resp); err != nil {
		return nil, err
	}
	return resp.Data.RaspList, nil
}

// ReserveRasp получает расписание из резервного источника. Данные беднее основных
// и помечаются фиксированным цветом и предупреждением в описании.
func (c *Client) ReserveRasp(ctx context.Context, studentID int64, window model.Window) ([]model.Event, error) {
	var resp reserveResponse
	if err := c.getJSON(ctx, "reserve rasp", c.publicRaspURL(c.reserveOrigin, studentID, window), "", &resp); err != nil {
		return nil, err
	}

	formatter := format.NewFormatter(c.loc, nil)

	events := make([]model.Event, 0, len(resp.Data.Rasp))
	for _, entry := range resp.Data.Rasp {
		ev, err := formatter.NormalizeReserve(entry)
		if err != nil {
			c.logger.Warn("Skipping malformed reserve entry", zap.String("discipline", entry.Discipline), zap.Error(err))
			continue
		}
		if window.Contains(ev.Start) {
			events = append(events, ev)
		}
	}

	return events, nil
}

// RaspHash считает хэш сырого расписания студента, не разбирая его
func (c *Client) RaspHash(ctx context.Context, studentID int64, window model.Window) (string, error) {
	const op = "rasp hash"

	body, err := c.open(ctx, op, http.MethodGet, c.publicRaspURL(c.origin, studentID, window), "", nil)
	if err != nil {
		return "", err
	}
	defer body.Close()

	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", &FetchError{Op: op, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StudentList получает справочник студентов траектории провайдера
func (c *Client) StudentList(ctx context.Context, p *model.Provider) ([]model.Student, error) {
	token, err := c.NewSession(p).Token(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{"educationSpaceID": {strconv.FormatInt(p.EducationSpaceID, 10)}}

	var resp studentListResponse
	if err := c.getJSON(ctx, "student list", c.origin+studentListPath+"?"+q.Encode(), token, &resp); err != nil {
		return nil, err
	}

	students := make([]model.Student, 0, len(resp.Data.AllStudent))
	for _, s := range resp.Data.AllStudent {
		student := model.Student{
			ID:        s.StudentID,
			Course:    s.Course,
			SpaceID:   p.EducationSpaceID,
			FullName:  s.FullName,
			ShortName: s.Fio,
		}
		// Чужие траектории отбрасываем
		if student.SpaceID <= 0 {
			continue
		}
		students = append(students, student)
	}
	return students, nil
}

// lessonTypes возвращает справочник типов занятий, кэшируя его на catalogTTL.
// При ошибке возвращает то, что было в кэше.
func (c *Client) lessonTypes(ctx context.Context, token string) []format.LessonType {
	c.catalogMu.Lock()
	defer c.catalogMu.Unlock()

	if c.catalog != nil && c.now().Sub(c.catalogFetchedAt) < c.catalogTTL {
		return c.catalog
	}

	var resp lessonTypesResponse
	if err := c.getJSON(ctx, "lesson types", c.origin+lessonTypesPath, token, &resp); err != nil {
		c.logger.Warn("Failed to fetch lesson types", zap.Error(err))
		return c.catalog
	}

	c.catalog = resp.Data.LessonsTypes
	c.catalogFetchedAt = c.now()
	return c.catalog
}

// probe проверяет, что токен ещё действует
func (c *Client) probe(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	var resp sessionResponse
	if err := c.getJSON(ctx, "session probe", c.origin+tokenPath, token, &resp); err != nil {
		return false, err
	}
	return resp.State == sessionStateValid, nil
}

// exchange обменивает логин и пароль на токен
func (c *Client) exchange(ctx context.Context, userName, password string) (*tokenAuthResponse, error) {
	payload, err := json.Marshal(tokenAuthRequest{UserName: userName, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	body, err := c.open(ctx, "token exchange", http.MethodPost, c.origin+tokenPath, "", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp tokenAuthResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &FetchError{Op: "token exchange", Err: fmt.Errorf("decode: %w", err)}
	}
	return &resp, nil
}

func (c *Client) publicRaspURL(origin string, studentID int64, window model.Window) string {
	q := url.Values{
		"idStudent": {strconv.FormatInt(studentID, 10)},
		"sdate":     {window.Start.In(c.loc).Format(time.DateOnly)},
	}
	return origin + publicRaspPath + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, op, rawURL, token string, out any) error {
	body, err := c.open(ctx, op, http.MethodGet, rawURL, token, nil)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// open выполняет запрос и возвращает тело успешного ответа
func (c *Client) open(ctx context.Context, op, method, rawURL, token string, payload io.Reader) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &FetchError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(snippet)))}
	}

	return resp.Body, nil
}

func withSlash(origin string) string {
	if origin == "" || strings.HasSuffix(origin, "/") {
		return origin
	}
	return origin + "/"
}
