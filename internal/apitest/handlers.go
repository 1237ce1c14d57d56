package apitest

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/InventarisHub/internal/models"
)

const maxUploadBytes = 5 << 20

type productJSON struct {
	ID         string      `json:"_id"`
	Name       string      `json:"productName"`
	Category   string      `json:"category"`
	Quantity   int64       `json:"quantity"`
	Price      json.Number `json:"price"`
	TotalPrice json.Number `json:"totalPrice"`
	Date       time.Time   `json:"date"`
	Image      string      `json:"image,omitempty"`
}

func toProductJSON(p models.Product) productJSON {
	return productJSON{
		ID:         p.ID,
		Name:       p.Name,
		Category:   p.Category,
		Quantity:   p.Quantity,
		Price:      json.Number(p.Price.String()),
		TotalPrice: json.Number(p.TotalPrice.String()),
		Date:       p.Date,
		Image:      p.Image,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if a.user.Username == req.Username {
			found = a
			break
		}
	}
	gen := s.gen
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.hash, []byte(req.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	token, err := s.sign(found.user, gen)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResult{Token: token, Role: found.user.Role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if c, err := s.parse(raw); err == nil {
		s.mu.Lock()
		s.revoked[c.ID] = true
		s.mu.Unlock()
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := s.usersLocked()
	shape := s.shape
	s.mu.Unlock()

	switch shape {
	case UsersDataEnvelope:
		writeJSON(w, http.StatusOK, map[string]any{"data": users})
	case UsersUnexpected:
		writeJSON(w, http.StatusOK, map[string]any{"items": users})
	default:
		writeJSON(w, http.StatusOK, users)
	}
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Username string      `json:"username"`
		Email    string      `json:"email"`
		Role     models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Username == "" || !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "username and a valid role are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	for otherID, other := range s.accounts {
		if otherID != id && other.user.Username == req.Username {
			writeMessage(w, http.StatusConflict, "Username already taken")
			return
		}
	}
	a.user.Username = req.Username
	a.user.Email = req.Email
	a.user.Role = req.Role
	writeJSON(w, http.StatusOK, map[string]any{"message": "User updated", "data": a.user})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.accounts, id)
	writeMessage(w, http.StatusOK, "User deleted")
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	products := s.productsLocked()
	broken := s.broken
	s.mu.Unlock()

	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, toProductJSON(p))
	}
	key := "products"
	if broken {
		key = "items"
	}
	writeJSON(w, http.StatusOK, map[string]any{key: out})
}

// productUpdate carries the fields present in a PUT body.
type productUpdate struct {
	Name     *string
	Category *string
	Quantity *int64
	Price    *decimal.Decimal
	Image    string
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	_, exists := s.products[id]
	s.mu.Unlock()
	if !exists {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}

	var (
		upd productUpdate
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		upd, err = parseMultipartUpdate(r)
	} else {
		upd, err = parseJSONUpdate(r.Body)
	}
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Quantity != nil {
		p.Quantity = *upd.Quantity
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Image != "" {
		p.Image = upd.Image
	}
	p.Recalculate()
	p.Date = s.now().UTC().Truncate(time.Second)
	s.products[id] = p
	writeJSON(w, http.StatusOK, toProductJSON(p))
}

func parseJSONUpdate(body io.Reader) (productUpdate, error) {
	var req struct {
		Name     *string          `json:"productName"`
		Category *string          `json:"category"`
		Quantity *int64           `json:"quantity"`
		Price    *decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return productUpdate{}, errors.New("invalid body")
	}
	upd := productUpdate{Name: req.Name, Category: req.Category, Quantity: req.Quantity, Price: req.Price}
	return upd, checkAmounts(upd)
}

func parseMultipartUpdate(r *http.Request) (productUpdate, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return productUpdate{}, errors.New("invalid multipart body")
	}
	var upd productUpdate
	if v, ok := r.MultipartForm.Value["productName"]; ok && len(v) > 0 {
		upd.Name = &v[0]
	}
	if v, ok := r.MultipartForm.Value["category"]; ok && len(v) > 0 {
		upd.Category = &v[0]
	}
	if v := r.FormValue("quantity"); v != "" {
		q, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return productUpdate{}, errors.New("quantity must be an integer")
		}
		upd.Quantity = &q
	}
	if v := r.FormValue("price"); v != "" {
		p, err := decimal.NewFromString(v)
		if err != nil {
			return productUpdate{}, errors.New("price must be a number")
		}
		upd.Price = &p
	}
	if file, header, err := r.FormFile("image"); err == nil {
		file.Close()
		upd.Image = "/uploads/" + uuid.NewString() + "-" + path.Base(header.Filename)
	}
	return upd, checkAmounts(upd)
}

func checkAmounts(upd productUpdate) error {
	if upd.Quantity != nil && *upd.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}
	delete(s.products, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	writeMessage(w, http.StatusOK, "Product deleted")
}
