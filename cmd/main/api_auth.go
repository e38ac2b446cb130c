package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// authHeader carries the raw API key on every authenticated request.
const authHeader = "acfget-auth"

// masterScope grants every other scope.
const masterScope = "*"

// knownScopes lists every scope a key may be granted.
var knownScopes = []string{
	"render",
	"templates:read",
	"templates:write",
	"stats:read",
	"server:config",
	"server:control",
	"auth:manage",
	masterScope,
}

// touchInterval bounds how often a key's last_used column is rewritten.
const touchInterval = time.Minute

const authSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id            INTEGER   PRIMARY KEY,
    key_hash      TEXT      NOT NULL UNIQUE,
    scopes        TEXT      NOT NULL,
    description   TEXT      NOT NULL,
    created_at    INTEGER   NOT NULL,
    last_used     INTEGER
);
`

var (
	errKeyNotFound   = errors.New("key not found")
	errLastMasterKey = errors.New("cannot delete the last master key")
)

type contextKey string

const contextKeyPermissions = contextKey("permissions")

// Permissions holds the authentication info for a request. KeyID is 0 while
// the API is open.
type Permissions struct {
	KeyID    int
	ScopeSet map[string]struct{}
}

func setupAuthSchema(db *sql.DB) error {
	if _, err := db.Exec(authSchema); err != nil {
		return fmt.Errorf("failed to create api_keys table: %w", err)
	}
	return nil
}

// keyStore is the api_keys table. Scopes are stored space separated.
type keyStore struct {
	db *sql.DB
}

// storedKey is the row behind an authenticated request.
type storedKey struct {
	id       int
	scopes   []string
	lastUsed sql.NullInt64
}

func (ks *keyStore) count(ctx context.Context) (int, error) {
	var n int
	err := ks.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_keys").Scan(&n)
	return n, err
}

// lookup finds the key with the given hash. A missing key is sql.ErrNoRows.
func (ks *keyStore) lookup(ctx context.Context, keyHash string) (storedKey, error) {
	var k storedKey
	var scopes string
	err := ks.db.QueryRowContext(ctx,
		"SELECT id, scopes, last_used FROM api_keys WHERE key_hash = ?", keyHash).
		Scan(&k.id, &scopes, &k.lastUsed)
	k.scopes = strings.Fields(scopes)
	return k, err
}

// touch records a use of the key, at most once per touchInterval.
func (ks *keyStore) touch(ctx context.Context, k storedKey, now time.Time) error {
	if k.lastUsed.Valid && now.Sub(time.Unix(k.lastUsed.Int64, 0)) < touchInterval {
		return nil
	}
	_, err := ks.db.ExecContext(ctx, "UPDATE api_keys SET last_used = ? WHERE id = ?", now.Unix(), k.id)
	return err
}

func (ks *keyStore) list(ctx context.Context) ([]APIKeyInfo, error) {
	rows, err := ks.db.QueryContext(ctx,
		"SELECT id, description, scopes, created_at, last_used FROM api_keys ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	keys := []APIKeyInfo{}
	for rows.Next() {
		var key APIKeyInfo
		var scopes string
		var created int64
		var lastUsed sql.NullInt64
		if err = rows.Scan(&key.ID, &key.Description, &scopes, &created, &lastUsed); err != nil {
			return nil, err
		}
		key.Scopes = strings.Fields(scopes)
		key.CreatedAt = time.Unix(created, 0).UTC()
		if lastUsed.Valid {
			t := time.Unix(lastUsed.Int64, 0).UTC()
			key.LastUsed = &t
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// insert saves a new key. The first key of an empty table is always a master
// key so the API cannot be locked.
func (ks *keyStore) insert(ctx context.Context, keyHash, description string, scopes []string, now time.Time) (int, []string, error) {
	tx, err := ks.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var n int
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_keys").Scan(&n); err != nil {
		return 0, nil, err
	}
	if n == 0 {
		scopes = []string{masterScope}
	}

	var id int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, description, scopes, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		keyHash, description, strings.Join(scopes, " "), now.Unix()).Scan(&id)
	if err != nil {
		return 0, nil, err
	}
	return id, scopes, tx.Commit()
}

// remove deletes a key unless it is the only remaining master key.
func (ks *keyStore) remove(ctx context.Context, id int) error {
	tx, err := ks.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var scopes string
	err = tx.QueryRowContext(ctx, "SELECT scopes FROM api_keys WHERE id = ?", id).Scan(&scopes)
	if errors.Is(err, sql.ErrNoRows) {
		return errKeyNotFound
	}
	if err != nil {
		return err
	}

	if slices.Contains(strings.Fields(scopes), masterScope) {
		var masters int
		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM api_keys WHERE ' ' || scopes || ' ' LIKE '% * %'").Scan(&masters)
		if err != nil {
			return err
		}
		if masters <= 1 {
			return errLastMasterKey
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// AuthAPI holds the dependencies for the authentication API handlers.
type AuthAPI struct {
	keys   *keyStore
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthAPI(db *sql.DB, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{
		keys:   &keyStore{db: db},
		logger: logger,
		now:    time.Now,
	}
}

// RegisterRoutes sets up the routing for all /api/auth endpoints on a standard http.ServeMux.
func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/me", a.handleCheckMe)
	mux.HandleFunc("/api/auth/keys", a.handleKeys)
	mux.HandleFunc("/api/auth/keys/", a.handleKeyByID)
}

// APIKeyInfo is the structure returned when listing keys.
type APIKeyInfo struct {
	ID          int        `json:"id"`
	Scopes      []string   `json:"scopes"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

// CreateKeyRequest is the expected JSON body for creating a new key.
type CreateKeyRequest struct {
	Scopes      []string `json:"scopes" validate:"required,min=1,dive,required"`
	Description string   `json:"description" validate:"max=200"`
}

// CreateKeyResponse is the JSON response after creating a key.
type CreateKeyResponse struct {
	ID     int      `json:"id"`
	RawKey string   `json:"raw_key"`
	Scopes []string `json:"scopes"`
}

// Authenticate checks for a valid key in the acfget-auth header. While no keys
// exist the API is open with every scope granted.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if apiKey := r.Header.Get(authHeader); apiKey != "" {
			key, err := a.keys.lookup(ctx, hashAPIKey(apiKey))
			switch {
			case err == nil:
				if err = a.keys.touch(ctx, key, a.now()); err != nil {
					a.logger.Warn("Failed to record API key use", "id", key.id, "error", err)
				}
				next.ServeHTTP(w, r.WithContext(withPermissions(ctx, key.id, key.scopes)))
				return
			case !errors.Is(err, sql.ErrNoRows):
				a.logger.Error("Authenticate failed to query API key", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		n, err := a.keys.count(ctx)
		if err != nil {
			a.logger.Error("Authenticate failed to count keys", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if n > 0 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPermissions(ctx, 0, []string{masterScope})))
	})
}

func withPermissions(ctx context.Context, keyID int, scopes []string) context.Context {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return context.WithValue(ctx, contextKeyPermissions, &Permissions{KeyID: keyID, ScopeSet: set})
}

func (a *AuthAPI) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listKeys(w, r)
	case http.MethodPost:
		a.createKey(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *AuthAPI) handleKeyByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/auth/keys/"), "/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid key ID format in URL")
		return
	}

	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed for this key resource")
		return
	}
	a.deleteKey(w, r, id)
}

func (a *AuthAPI) handleCheckMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	perms, ok := r.Context().Value(contextKeyPermissions).(*Permissions)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	scopes := make([]string, 0, len(perms.ScopeSet))
	for s := range perms.ScopeSet {
		scopes = append(scopes, s)
	}
	slices.Sort(scopes)

	respondWithJSON(w, http.StatusOK, map[string]any{
		"key_id": perms.KeyID,
		"scopes": scopes,
	})
}

func (a *AuthAPI) listKeys(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}

	keys, err := a.keys.list(r.Context())
	if err != nil {
		a.logger.Error("Failed to list API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (a *AuthAPI) createKey(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := validateStruct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, s := range req.Scopes {
		if !slices.Contains(knownScopes, s) {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scope '%s'", s))
			return
		}
	}

	rawKey, err := generateAPIKey()
	if err != nil {
		a.logger.Error("Failed to generate new API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	id, scopes, err := a.keys.insert(r.Context(), hashAPIKey(rawKey), req.Description, req.Scopes, a.now())
	if err != nil {
		a.logger.Error("Failed to insert new API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save new key")
		return
	}

	a.logger.Info("API key created", "id", id, "scopes", strings.Join(scopes, " "))
	respondWithJSON(w, http.StatusCreated, CreateKeyResponse{ID: id, RawKey: rawKey, Scopes: scopes})
}

func (a *AuthAPI) deleteKey(w http.ResponseWriter, r *http.Request, id int) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}

	switch err := a.keys.remove(r.Context(), id); {
	case err == nil:
		a.logger.Info("API key deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errKeyNotFound):
		respondWithError(w, http.StatusNotFound, "Key not found")
	case errors.Is(err, errLastMasterKey):
		respondWithError(w, http.StatusBadRequest, "Cannot delete the last master key")
	default:
		a.logger.Error("Failed to delete API key", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete key")
	}
}

// hasScope checks if the permission set in the request context includes a required scope.
func hasScope(r *http.Request, requiredScope string) bool {
	perms, ok := r.Context().Value(contextKeyPermissions).(*Permissions)
	if !ok {
		return false
	}
	if _, isMaster := perms.ScopeSet[masterScope]; isMaster {
		return true
	}
	_, has := perms.ScopeSet[requiredScope]
	return has
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "acfg_" + hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
