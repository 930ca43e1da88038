package jwtware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultTokenLookup reads "Authorization: Bearer <token>"
	DefaultTokenLookup = "header:" + fiber.HeaderAuthorization
	// DefaultAuthScheme is the expected Authorization scheme
	DefaultAuthScheme = "Bearer"
)

var ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

// JWTExtractor pulls a raw token out of a request
type JWTExtractor func(c *fiber.Ctx) (string, error)

// Lookup describes where tokens are read from, e.g.
// "header:Authorization,cookie:jwt,query:auth_token,param:token"
type Lookup struct {
	TokenLookup string
	AuthScheme  string

	extractors []JWTExtractor
}

// NewLookup parses tokenLookup once so extraction is cheap per request
func NewLookup(tokenLookup, authScheme string) *Lookup {
	if strings.TrimSpace(tokenLookup) == "" {
		tokenLookup = DefaultTokenLookup
	}
	if strings.TrimSpace(authScheme) == "" {
		authScheme = DefaultAuthScheme
	}
	return &Lookup{
		TokenLookup: tokenLookup,
		AuthScheme:  authScheme,
		extractors:  GetExtractors(tokenLookup, authScheme),
	}
}

// Extract returns the first token found by the configured extractors
func (l *Lookup) Extract(c *fiber.Ctx) (string, error) {
	return ExtractRawTokenFromContext(c, l.extractors)
}

func ExtractRawTokenFromContext(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	raw := ""
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := DefaultAuthScheme
	if len(authSchemes) > 0 && authSchemes[0] != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
