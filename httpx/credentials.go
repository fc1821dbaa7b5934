package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/oauth"
	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/config"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/model"
	"golang.org/x/crypto/bcrypt"
)

// Claims carried by access tokens.
const (
	ClaimAccountID = "uid"
	ClaimUsername  = "username"
	ClaimRole      = "role"
)

const refreshTokenTTL = 8760 * time.Hour

type credentialsVerifier struct {
	db *sqlx.DB
}

func CredentialsVerifier(db *sqlx.DB) oauth.CredentialsVerifier {
	return &credentialsVerifier{db}
}

func NewBearerServer(db *sqlx.DB, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(db), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	var hash string
	err := cs.db.QueryRowContext(r.Context(),
		cs.db.Rebind("SELECT password_hash FROM account WHERE username = ?"), username,
	).Scan(&hash)
	if err != nil {
		return err
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	_, err := cs.db.Exec(
		cs.db.Rebind("INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)"),
		credential,
		tokenID,
		refreshTokenID,
		time.Now().Add(refreshTokenTTL),
	)
	return err
}

func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	var expiration time.Time
	err := cs.db.QueryRow(cs.db.Rebind(`
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?
		RETURNING expiration`),
		credential,
		tokenID,
		refreshTokenID,
	).Scan(&expiration)
	if err != nil {
		return errors.New("could not refresh")
	}

	if expiration.Before(time.Now()) {
		return errors.New("could not refresh")
	}
	return nil
}

func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}

	var account model.Account
	err := cs.db.GetContext(ctx, &account, cs.db.Rebind(`
		SELECT id, username, email, role, created_at FROM account WHERE username = ?`),
		credential,
	)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimAccountID: strconv.FormatInt(account.ID, 10),
		ClaimUsername:  account.Username,
		ClaimRole:      string(account.Role),
	}, nil
}

func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}

func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}

// ActorFromClaims rebuilds the authenticated account from token claims.
func ActorFromClaims(claims map[string]string) (model.Actor, bool) {
	id, err := strconv.ParseInt(claims[ClaimAccountID], 10, 64)
	if err != nil {
		return model.Actor{}, false
	}
	role := model.Role(claims[ClaimRole])
	if !role.Valid() {
		return model.Actor{}, false
	}
	return model.Actor{ID: id, Username: claims[ClaimUsername], Role: role}, true
}

// CreateAccount stores a new account with a bcrypt-hashed password.
func CreateAccount(ctx context.Context, db *sqlx.DB, username, email, password string, role model.Role) (*model.Account, error) {
	if !role.Valid() {
		return nil, errors.New("unknown role " + strconv.Quote(string(role)))
	}
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &model.Account{Username: username, Email: email, Role: role, CreatedAt: time.Now().UTC()}
	err = db.QueryRowxContext(ctx, db.Rebind(`
		INSERT INTO account (username, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		account.Username, account.Email, string(hash), account.Role, account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// LookupActor loads an account by username, for operations run outside a request.
func LookupActor(ctx context.Context, db *sqlx.DB, username string) (model.Actor, error) {
	var account model.Account
	err := db.GetContext(ctx, &account, db.Rebind(`
		SELECT id, username, email, role, created_at FROM account WHERE username = ?`),
		username,
	)
	if err != nil {
		return model.Actor{}, database.Translate(err)
	}
	return model.Actor{ID: account.ID, Username: account.Username, Role: account.Role}, nil
}

// RevokeTokens forgets every refresh token issued to username.
func RevokeTokens(ctx context.Context, db *sqlx.DB, username string) error {
	_, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM token WHERE username = ?`), username)
	return err
}
