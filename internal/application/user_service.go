package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/federation/enterprise/internal/domain/entity"
	repo "github.com/federation/enterprise/internal/domain/repository"
	"github.com/federation/enterprise/pkg/helpers"
)

// ErrAuthentication is a deliberately generic credential failure: callers
// cannot tell whether the name or the password was wrong.
var ErrAuthentication = errors.New("authentication failed")

// Service owns the user lifecycle: registration, login, token rotation. All
// cryptographic and persistence failures propagate untouched; nothing in here
// retries.
type Service struct {
	Repo            repo.UserRepository
	JWT             *helpers.JWTManager
	Redis           *redis.Client
	Logger          *logrus.Logger
	ES              *elasticsearch.Client
	ESAccountsIndex string
}

// TokenPair is an access/refresh token set minted together.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esAccountsIndex string) *Service {
	return &Service{
		Repo:            repo,
		JWT:             jwt,
		Redis:           rdb,
		Logger:          logger,
		ES:              es,
		ESAccountsIndex: esAccountsIndex,
	}
}

// Register creates a user with the given credentials and persists it along
// with its first refresh token. The capability check runs before the
// expensive hash so an invalid user costs nothing; no partial side effects
// happen on an invalid entity.
func (s *Service) Register(ctx context.Context, name, email, plaintext string) (*entity.User, TokenPair, error) {
	u := entity.NewUser(entity.Properties{Name: name, Email: email})
	if !u.IsContactable() {
		return nil, TokenPair{}, entity.ErrNotContactable
	}

	hash, err := helpers.HashPassword(helpers.NormalizePassword(plaintext))
	if err != nil {
		return nil, TokenPair{}, err
	}
	u.Password = hash

	refresh, rexp, err := s.JWT.GenerateRefreshToken(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	u.RefreshToken = refresh

	if !u.IsCreateable() {
		return nil, TokenPair{}, entity.ErrNotCreateable
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		// repo.ErrNameTaken passes through so the caller can report the
		// duplicate distinctly.
		return nil, TokenPair{}, err
	}

	access, aexp, err := s.JWT.GenerateAccessToken(u)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.cacheSession(ctx, u)
	s.indexAccount(ctx, u)

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "name": u.Name}).Info("user registered")
	}
	return u, TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Authenticate verifies plaintext against the user's stored hash. The user
// must be Authenticateable; a mismatch is (false, nil), an unusable stored
// hash is an error.
func (s *Service) Authenticate(u *entity.User, plaintext string) (bool, error) {
	if !u.IsAuthenticateable() {
		return false, entity.ErrNotAuthenticateable
	}
	return helpers.VerifyPassword(u.Password, helpers.NormalizePassword(plaintext))
}

// Login fetches the user by name, verifies the password, and mints a fresh
// token pair, rotating the stored refresh token. Unknown names and bad
// passwords both come back as ErrAuthentication.
func (s *Service) Login(ctx context.Context, name, plaintext string) (*entity.User, TokenPair, error) {
	u, err := s.Repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrAuthentication
		}
		return nil, TokenPair{}, err
	}

	ok, err := s.Authenticate(u, plaintext)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !ok {
		return nil, TokenPair{}, ErrAuthentication
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}

	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("user logged in")
	}
	return u, pair, nil
}

// Refresh rotates the token pair: the presented refresh token must verify
// cryptographically and still be the one on record for that user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*entity.User, TokenPair, error) {
	claimed, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, TokenPair{}, err
	}

	u, err := s.Repo.GetByRefreshToken(ctx, claimed.ID, refreshToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrAuthentication
		}
		return nil, TokenPair{}, err
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// CurrentUser reconstructs the request identity from a bearer access token.
// The returned user carries only the claimed fields.
func (s *Service) CurrentUser(token string) (*entity.User, error) {
	return s.JWT.ParseAccessToken(token)
}

// GetByName looks up a stored user.
func (s *Service) GetByName(ctx context.Context, name string) (*entity.User, error) {
	return s.Repo.GetByName(ctx, name)
}

// Logout invalidates the stored refresh token and drops the session cache.
func (s *Service) Logout(ctx context.Context, u *entity.User) error {
	if !u.IsIdentifiable() {
		return entity.ErrNotIdentifiable
	}
	if err := s.Repo.UpdateRefreshToken(ctx, u.ID, ""); err != nil {
		return err
	}
	if s.Redis != nil {
		_ = s.Redis.Del(ctx, sessionKey(u.ID)).Err()
	}
	return nil
}

// issueTokens mints a pair, persists the new refresh token, and records the
// session in Redis.
func (s *Service) issueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.Repo.UpdateRefreshToken(ctx, u.ID, refresh); err != nil {
		return TokenPair{}, err
	}
	u.RefreshToken = refresh

	s.cacheSession(ctx, u)
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// cacheSession writes a session hash to Redis, best effort.
func (s *Service) cacheSession(ctx context.Context, u *entity.User) {
	if s.Redis == nil {
		return
	}
	key := sessionKey(u.ID)
	pipe := s.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"updated_at": nowRFC3339(),
	})
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("key", key).Warn("redis pipeline failed")
	}
}

// indexAccount indexes the public identity fields to Elasticsearch, best
// effort. The password hash stays out of the document.
func (s *Service) indexAccount(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESAccountsIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESAccountsIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

// SearchAccounts performs a simple multi_match search on name and email.
func (s *Service) SearchAccounts(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESAccountsIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"name^2", "email"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESAccountsIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
