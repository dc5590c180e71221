package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is the per-visitor state stored in Redis. It carries the cart
// contents, the append-only list of orders placed during the session
// (the only purchase proof an anonymous visitor has), and a legacy list
// of purchased product ids kept for display purposes. The legacy list is
// never authoritative for access decisions; orders are.
type Session struct {
	CartProductIDs []uint64 `json:"cart_product_ids"`
	OrderIDs       []uint64 `json:"order_ids"`
	PurchasedIDs   []uint64 `json:"purchased_ids"`
}

// CartHash derives a stable digest of the cart contents. The empty cart
// hashes to the empty string so the fingerprint layer can tell "nothing
// in the cart" apart from any real cart.
func (s *Session) CartHash() string {
	if len(s.CartProductIDs) == 0 {
		return ""
	}
	ids := append([]uint64(nil), s.CartProductIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// AddCartItem appends a product to the cart unless it is already there.
// Reports whether the cart changed.
func (s *Session) AddCartItem(productID uint64) bool {
	for _, id := range s.CartProductIDs {
		if id == productID {
			return false
		}
	}
	s.CartProductIDs = append(s.CartProductIDs, productID)
	return true
}

// RemoveCartItem drops a product from the cart. Reports whether the cart
// changed.
func (s *Session) RemoveCartItem(productID uint64) bool {
	for i, id := range s.CartProductIDs {
		if id == productID {
			s.CartProductIDs = append(s.CartProductIDs[:i], s.CartProductIDs[i+1:]...)
			return true
		}
	}
	return false
}

// EmptyCart removes all cart items. Reports whether the cart changed.
func (s *Session) EmptyCart() bool {
	if len(s.CartProductIDs) == 0 {
		return false
	}
	s.CartProductIDs = nil
	return true
}

// AppendOrder records an order id placed during this session. Ids are
// appended once; order of insertion is preserved.
func (s *Session) AppendOrder(orderID uint64) {
	for _, id := range s.OrderIDs {
		if id == orderID {
			return
		}
	}
	s.OrderIDs = append(s.OrderIDs, orderID)
}

// AppendPurchased records product ids into the legacy purchased list.
func (s *Session) AppendPurchased(productIDs ...uint64) {
	for _, pid := range productIDs {
		seen := false
		for _, id := range s.PurchasedIDs {
			if id == pid {
				seen = true
				break
			}
		}
		if !seen {
			s.PurchasedIDs = append(s.PurchasedIDs, pid)
		}
	}
}

// SessionRepo persists visitor sessions in Redis as JSON blobs with a
// sliding TTL. When the Redis client is nil the repo degrades to
// stateless mode: loads return an empty session and saves are dropped,
// so guests simply lose cart persistence instead of getting errors.
type SessionRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionRepo builds a SessionRepo. ttl bounds how long an idle
// visitor session survives.
func NewSessionRepo(rdb *redis.Client, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionRepo{rdb: rdb, ttl: ttl}
}

func (r *SessionRepo) key(sid string) string { return "session:" + sid }

// Load fetches the session for a visitor id. Unknown ids and decode
// failures yield a fresh empty session.
func (r *SessionRepo) Load(ctx context.Context, sid string) (*Session, error) {
	s := &Session{}
	if r.rdb == nil || sid == "" {
		return s, nil
	}
	raw, err := r.rdb.Get(ctx, r.key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, s); err != nil {
		// Corrupt payload: start over rather than locking the visitor out.
		return &Session{}, nil
	}
	return s, nil
}

// Save writes the session back and refreshes its TTL.
func (r *SessionRepo) Save(ctx context.Context, sid string, s *Session) error {
	if r.rdb == nil || sid == "" {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(sid), raw, r.ttl).Err()
}

// Delete removes a visitor session.
func (r *SessionRepo) Delete(ctx context.Context, sid string) error {
	if r.rdb == nil || sid == "" {
		return nil
	}
	return r.rdb.Del(ctx, r.key(sid)).Err()
}

// NewSessionID generates an opaque visitor session identifier.
func NewSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
