package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/InventarisHub/internal/apitest"
	"github.com/atinyakov/InventarisHub/internal/models"
)

// staticToken is a TokenSource with a fixed value.
type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

// roundTripperFunc lets a plain func stand in for the transport.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newFakeClient(t *testing.T, fn roundTripperFunc) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    "http://upstream.test",
		HTTPClient: &http.Client{Transport: fn, Timeout: time.Second},
	}, staticToken("tok"))
	require.NoError(t, err)
	return c
}

func reply(status int, body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

// newLiveClient returns a client logged into a seeded fake upstream.
func newLiveClient(t *testing.T) (*Client, *apitest.Server) {
	t.Helper()
	srv, ts := apitest.NewTestServer(t)
	anon, err := New(Options{BaseURL: ts.URL}, nil)
	require.NoError(t, err)
	res, err := anon.Login(context.Background(), apitest.AdminUsername, apitest.AdminPassword)
	require.NoError(t, err)

	c, err := New(Options{BaseURL: ts.URL}, staticToken(res.Token))
	require.NoError(t, err)
	return c, srv
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{}, nil)
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "upstream.test"}, nil)
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "http://ok.test", CAFile: filepath.Join(t.TempDir(), "missing.pem")}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewHTTPClient_BadCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("invalid pem"), 0600))
	_, err := NewHTTPClient(time.Second, false, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CA cert")
}

func TestNewHTTPClient_Insecure(t *testing.T) {
	hc, err := NewHTTPClient(0, true, "")
	require.NoError(t, err)
	tcfg := hc.Transport.(*http.Transport).TLSClientConfig
	assert.True(t, tcfg.InsecureSkipVerify)
	assert.Equal(t, 10*time.Second, hc.Timeout)
}

func TestRequestHeaders(t *testing.T) {
	var got *http.Request
	c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
		got = req
		return reply(http.StatusOK, `{"products":[]}`)
	})

	_, err := c.ListProducts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "http://upstream.test/products", got.URL.String())
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Len(t, got.Header.Get(headerRequestID), 36)
}

func TestNoTokenNoAuthorization(t *testing.T) {
	var got *http.Request
	c, err := New(Options{
		BaseURL: "http://upstream.test",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			got = req
			return reply(http.StatusOK, `[]`)
		})},
	}, staticToken(""))
	require.NoError(t, err)

	_, err = c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Header.Get("Authorization"))
}

func TestListProducts_Envelope(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  Kind
		wantCount int
	}{
		{"ok", http.StatusOK, `{"products":[{"_id":"P1","productName":"Laptop","price":1000,"totalPrice":"3000","quantity":3}]}`, KindNone, 1},
		{"empty", http.StatusOK, `{"products":[]}`, KindNone, 0},
		{"missing field", http.StatusOK, `{"items":[]}`, KindMalformed, 0},
		{"null field", http.StatusOK, `{"products":null}`, KindMalformed, 0},
		{"not an array", http.StatusOK, `{"products":{"_id":"P1"}}`, KindMalformed, 0},
		{"bare array", http.StatusOK, `[]`, KindMalformed, 0},
		{"unauthorized", http.StatusUnauthorized, `{"message":"jwt expired"}`, KindUnauthorized, 0},
		{"server error", http.StatusInternalServerError, `oops`, KindNetworkOrServer, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
				return reply(tt.status, tt.body)
			})
			products, err := c.ListProducts(context.Background())
			assert.Equal(t, tt.wantKind, Classify(err))
			assert.Len(t, products, tt.wantCount)
		})
	}
}

func TestListProducts_TotalTakenVerbatim(t *testing.T) {
	c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"products":[{"_id":"P1","quantity":3,"price":1000,"totalPrice":2999}]}`)
	})
	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2999", products[0].TotalPrice.String())
}

func TestListUsers_Shapes(t *testing.T) {
	bare := `[{"_id":"u1","username":"ana","email":"ana@x.io","role":"Admin"}]`
	wrapped := `{"data":` + bare + `}`

	decode := func(body string) []models.User {
		c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
			return reply(http.StatusOK, body)
		})
		users, err := c.ListUsers(context.Background())
		require.NoError(t, err)
		return users
	}

	assert.Equal(t, decode(bare), decode(wrapped))
	assert.Equal(t, models.RoleAdmin, decode(bare)[0].Role)
	for _, body := range []string{`{"items":[]}`, `{"data":"nope"}`, `"text"`, `{}`, `[1,2]`} {
		users := decode(body)
		assert.NotNil(t, users, body)
		assert.Empty(t, users, body)
	}
}

func TestListUsers_WarnsOnUnexpectedShape(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c, err := New(Options{
		BaseURL: "http://upstream.test",
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return reply(http.StatusOK, `{"items":[]}`)
		})},
		Logger: zap.New(core),
	}, nil)
	require.NoError(t, err)

	_, err = c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessageSnippet("neither an array").Len())
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{"ok", http.StatusOK, `{"token":"t1","role":"Admin"}`, KindNone, ""},
		{"invalid credentials", http.StatusUnauthorized, `{"message":"Invalid"}`, KindInvalidCredentials, ""},
		{"server message", http.StatusBadRequest, `{"message":"username and password are required"}`, KindNetworkOrServer, "username and password are required"},
		{"no message", http.StatusServiceUnavailable, ``, KindNetworkOrServer, "503 Service Unavailable"},
		{"no token", http.StatusOK, `{"role":"Admin"}`, KindMalformed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawAuth string
			c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
				sawAuth = req.Header.Get("Authorization")
				return reply(tt.status, tt.body)
			})
			res, err := c.Login(context.Background(), "u", "p")
			assert.Empty(t, sawAuth, "login must not send a bearer token")
			assert.Equal(t, tt.wantKind, Classify(err))
			if tt.wantKind == KindNone {
				assert.Equal(t, "t1", res.Token)
				assert.Equal(t, models.RoleAdmin, res.Role)
			}
			if tt.wantMsg != "" {
				assert.ErrorIs(t, err, ErrLoginFailed)
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLogin_NetworkError(t *testing.T) {
	c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})
	_, err := c.Login(context.Background(), "u", "p")
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, KindNetworkOrServer, Classify(err))
}

func TestLogin_ThenListProducts(t *testing.T) {
	c, srv := newLiveClient(t)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, len(srv.Products()))
	assert.Equal(t, "P1", products[0].ID)
	assert.Equal(t, "3000", products[0].TotalPrice.String())
}

func TestUpdateProduct_JSON(t *testing.T) {
	c, srv := newLiveClient(t)
	p, _ := srv.Product("P1")
	p.Quantity = 5
	p.Recalculate()

	echoed, err := c.UpdateProduct(context.Background(), "P1", p, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), echoed.Quantity)
	assert.True(t, echoed.TotalPrice.Equal(decimal.NewFromInt(5000)))
}

func TestUpdateProduct_Multipart(t *testing.T) {
	c, srv := newLiveClient(t)
	p, _ := srv.Product("P2")

	echoed, err := c.UpdateProduct(context.Background(), "P2", p, &models.ImageUpload{Filename: "chair.jpg", Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.Contains(t, echoed.Image, "chair.jpg")
}

func TestUpdateProduct_SendsNumbers(t *testing.T) {
	var body string
	c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		return reply(http.StatusOK, `{"product":{"_id":"P1","quantity":2}}`)
	})
	p := models.Product{ID: "P1", Name: "Pen", Quantity: 2, Price: decimal.RequireFromString("1.5")}
	p.Recalculate()

	echoed, err := c.UpdateProduct(context.Background(), "P1", p, nil)
	require.NoError(t, err)
	assert.Equal(t, "P1", echoed.ID)
	assert.JSONEq(t, `{"productName":"Pen","category":"","quantity":2,"price":1.5,"totalPrice":3}`, body)
}

func TestUpdateProduct_MalformedEcho(t *testing.T) {
	c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
		return reply(http.StatusOK, `{"message":"ok"}`)
	})
	_, err := c.UpdateProduct(context.Background(), "P1", models.Product{}, nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestUpdateProduct_ServerMessage(t *testing.T) {
	c, srv := newLiveClient(t)
	srv.FailNext(http.MethodPut, "/products/P1", http.StatusUnprocessableEntity, "price too high")

	_, err := c.UpdateProduct(context.Background(), "P1", models.Product{}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "price too high", se.Message)
	assert.Equal(t, KindNetworkOrServer, Classify(err))
}

func TestDeleteProduct_Idempotence(t *testing.T) {
	c, _ := newLiveClient(t)
	ctx := context.Background()

	require.NoError(t, c.DeleteProduct(ctx, "P3"))
	again := c.DeleteProduct(ctx, "P3")
	never := c.DeleteProduct(ctx, "does-not-exist")

	assert.Equal(t, Classify(never), Classify(again))
	assert.Equal(t, StatusCode(never), StatusCode(again))
	assert.ErrorIs(t, again, ErrNotFound)
}

func TestUsersRoundTrip(t *testing.T) {
	c, srv := newLiveClient(t)
	ctx := context.Background()
	srv.SetUsersShape(apitest.UsersDataEnvelope)

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	target := users[1]
	target.Email = "new@inventaris.local"
	require.NoError(t, c.UpdateUser(ctx, target.ID, target))
	require.NoError(t, c.DeleteUser(ctx, users[1].ID))

	users, err = c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUnauthorizedAfterRevocation(t *testing.T) {
	c, srv := newLiveClient(t)
	srv.RevokeTokens()

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = c.ListUsers(context.Background())
	assert.Equal(t, KindUnauthorized, Classify(err))
	assert.Equal(t, KindUnauthorized, Classify(c.DeleteUser(context.Background(), "x")))
}

func TestLogout(t *testing.T) {
	c, _ := newLiveClient(t)
	require.NoError(t, c.Logout(context.Background()))

	_, err := c.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPathEscaping(t *testing.T) {
	var path string
	c := newFakeClient(t, func(req *http.Request) (*http.Response, error) {
		path = req.URL.EscapedPath()
		return reply(http.StatusOK, `{}`)
	})
	require.NoError(t, c.DeleteUser(context.Background(), "a/b c"))
	assert.Equal(t, "/users/a%2Fb%20c", path)
}

func TestServerMessage(t *testing.T) {
	assert.Equal(t, "m", serverMessage([]byte(`{"message":"m"}`)))
	assert.Equal(t, "e", serverMessage([]byte(`{"error":"e"}`)))
	assert.Equal(t, "", serverMessage([]byte(`{}`)))
	assert.Equal(t, "plain", serverMessage([]byte(" plain \n")))
	assert.Len(t, serverMessage([]byte(strings.Repeat("x", 500))), maxMessageLen)

	long := serverMessage([]byte("x" + strings.Repeat("é", 300)))
	assert.True(t, utf8.ValidString(long), "cut on a rune boundary")
	assert.Len(t, long, maxMessageLen-1)
}

func TestContextCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()
	c, err := New(Options{BaseURL: ts.URL}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListProducts(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindNetworkOrServer, Classify(err))
}
