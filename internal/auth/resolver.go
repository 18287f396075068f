package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v4"
	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/models"
	"gorm.io/gorm"
)

// Request field names carrying credentials.
const (
	FieldSealedToken    = "sToken"
	FieldSealedPlatform = "sPlatform"
	FieldToken          = "token"
)

// Client-facing messages.
const (
	MsgNoAuth       = "No valid authentication provided."
	MsgInvalidToken = "Invalid token."
	MsgRefreshToken = "Invalid token, please refresh the interface to get a new one."
)

var (
	keyAlgorithms      = []jose.KeyAlgorithm{jose.RSA_OAEP_256}
	contentEncryptions = []jose.ContentEncryption{jose.A256CBC_HS512}
	signingMethods     = []string{jwt.SigningMethodRS512.Alg()}
)

// ResolverOpts configures a Resolver.
type ResolverOpts struct {
	DB                    *gorm.DB
	PrivateKey            *rsa.PrivateKey // nil disables the sealed path
	AcceptInterfaceTokens bool
}

// Resolver authenticates raw requests.
type Resolver struct {
	db           *gorm.DB
	key          *rsa.PrivateKey
	acceptTokens bool
	now          func() time.Time
}

// NewResolver returns a Resolver.
func NewResolver(opts ResolverOpts) *Resolver {
	return &Resolver{
		db:           opts.DB,
		key:          opts.PrivateKey,
		acceptTokens: opts.AcceptInterfaceTokens,
		now:          time.Now,
	}
}

// Resolve authenticates raw. A presented sealed bundle for a known platform
// must validate; its failure never falls back to the token path.
func (r *Resolver) Resolve(ctx context.Context, raw RawRequest) (Identity, Request, error) {
	sealed, platformName := raw.Fields[FieldSealedToken], raw.Fields[FieldSealedPlatform]
	if sealed != "" && platformName != "" {
		platform, err := r.lookupPlatform(ctx, platformName)
		if err != nil {
			return Identity{}, Request{}, err
		}
		if platform != nil {
			fields, err := r.openSealed(sealed, platform)
			if err != nil {
				return Identity{}, Request{}, apperr.Auth(MsgInvalidToken)
			}
			return PlatformIdentity(*platform), Request{Fields: fields, Upload: raw.Upload}, nil
		}
	}

	if token, ok := raw.Fields[FieldToken]; ok && r.acceptTokens {
		valid, err := r.checkToken(ctx, token)
		if err != nil {
			return Identity{}, Request{}, err
		}
		if !valid {
			return Identity{}, Request{}, apperr.Auth(MsgRefreshToken)
		}
		return Sentinel(), Request{Fields: raw.Fields, Upload: raw.Upload}, nil
	}

	return Identity{}, Request{}, apperr.Auth(MsgNoAuth)
}

func (r *Resolver) lookupPlatform(ctx context.Context, name string) (*models.Platform, error) {
	var p models.Platform
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("Could not check authentication.", fmt.Errorf("auth: load platform %q: %w", name, err))
	}
	return &p, nil
}

// openSealed decrypts the outer JWE with the service key, then verifies the
// inner RS512 JWS against the platform key and returns its claims as fields.
func (r *Resolver) openSealed(sealed string, platform *models.Platform) (map[string]string, error) {
	if r.key == nil {
		return nil, errors.New("auth: no service private key configured")
	}
	enc, err := jose.ParseEncrypted(sealed, keyAlgorithms, contentEncryptions)
	if err != nil {
		return nil, fmt.Errorf("auth: parse jwe: %w", err)
	}
	inner, err := enc.Decrypt(r.key)
	if err != nil {
		return nil, fmt.Errorf("auth: decrypt jwe: %w", err)
	}

	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(platform.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("auth: platform %q public key: %w", platform.Name, err)
	}
	parser := jwt.NewParser(jwt.WithValidMethods(signingMethods), jwt.WithJSONNumber())
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(string(inner), claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	}); err != nil {
		return nil, fmt.Errorf("auth: verify jws: %w", err)
	}
	return FlattenFields(claims)
}

// checkToken reports whether token exists and has not expired. Expired tokens
// are purged on every call, whatever the outcome.
func (r *Resolver) checkToken(ctx context.Context, token string) (bool, error) {
	now := r.now()
	db := r.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.InterfaceToken{}).
		Where("token = ? AND expiration_time >= ?", token, now).
		Count(&n).Error; err != nil {
		return false, apperr.Storage("Could not check authentication.", fmt.Errorf("auth: check token: %w", err))
	}

	if err := db.Where("expiration_time < ?", now).Delete(&models.InterfaceToken{}).Error; err != nil {
		return false, apperr.Storage("Could not check authentication.", fmt.Errorf("auth: purge tokens: %w", err))
	}
	return n > 0, nil
}

// LoadPrivateKey reads a PKCS#1 or PKCS#8 RSA private key in PEM form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read private key %s: %w", path, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key %s: %w", path, err)
	}
	return key, nil
}
