package steamcommunity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/steamforge/mobileauth/steamapi"
	"github.com/steamforge/mobileauth/steamtotp"
)

// ConfirmationType represents the type of confirmation. Steam's classic
// /mobileconf/conf page only ever emits the two values below; any other
// data-type is treated as invalid (see parseConfirmationType).
type ConfirmationType int

const (
	ConfirmationTypeUnknown       ConfirmationType = 0
	ConfirmationTypeTrade         ConfirmationType = 2
	ConfirmationTypeMarketListing ConfirmationType = 3
)

func (t ConfirmationType) String() string {
	switch t {
	case ConfirmationTypeTrade:
		return "Trade"
	case ConfirmationTypeMarketListing:
		return "Market Listing"
	default:
		return "Unknown"
	}
}

// Confirmation represents one pending mobile confirmation, as scraped from
// a div.mobileconf_list_entry node.
type Confirmation struct {
	ID        string // data-confid
	Type      ConfirmationType
	CreatorID string // data-creator: trade offer ID or market listing ID
	Key       string // data-key: the confirmation's own nonce, required to respond
}

// confirmationGate serializes GetConfirmations calls to Steam's listing
// endpoint behind a binary semaphore: one caller holds it for the duration
// of a request plus a trailing delay, enforcing the minimum gap Steam
// expects between listing polls. A zero delay disables the gate entirely.
type confirmationGate struct {
	delay time.Duration
	mu    sync.Mutex
}

func (g *confirmationGate) acquire() {
	if g.delay <= 0 {
		return
	}
	g.mu.Lock()
}

// release schedules the semaphore's unlock g.delay from now instead
// of unlocking immediately, mirroring the teacher's detached release-timer
// idiom used elsewhere for rate limiting.
func (g *confirmationGate) release() {
	if g.delay <= 0 {
		return
	}
	time.AfterFunc(g.delay, g.mu.Unlock)
}

// buildConfirmationParams builds the query parameters shared by the
// listing, batch, and per-item confirmation endpoints. Every one of these
// calls signs with tag "conf", regardless of whether the operation is an
// accept or a reject.
func (c *Community) buildConfirmationParams(ctx context.Context, identitySecret []byte, deviceID string) (url.Values, error) {
	serverTime, _, err := steamapi.GetSteamTimeWithClient(ctx, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("get steam time: %w", err)
	}
	if serverTime == 0 {
		return nil, fmt.Errorf("steam time unavailable")
	}

	steamID64 := c.steamID.ToSteamID64()
	key := steamtotp.GenerateConfirmationKey(identitySecret, uint32(serverTime), "conf")

	params := url.Values{}
	params.Set("p", deviceID)
	params.Set("a", strconv.FormatUint(steamID64, 10))
	params.Set("k", key)
	params.Set("t", strconv.FormatInt(serverTime, 10))
	params.Set("m", "android")
	params.Set("tag", "conf")

	return params, nil
}

// GetConfirmations retrieves all pending confirmations by scraping the
// classic HTML listing page. identitySecret is the base64-decoded
// identity_secret from a maFile; deviceID must pass
// steamtotp.ValidateDeviceID (steamtotp.GetDeviceID derives a default one
// from a SteamID64 if the caller has no persisted value).
//
// A nil, non-error result is never returned: the listing is either a
// (possibly empty) slice or an error. An empty slice means Steam reported
// no pending confirmations, distinct from a parse failure.
func (c *Community) GetConfirmations(ctx context.Context, identitySecret []byte, deviceID string) ([]Confirmation, error) {
	if err := c.ensureInit(); err != nil {
		return nil, err
	}
	if err := steamtotp.ValidateDeviceID(deviceID); err != nil {
		return nil, fmt.Errorf("validate device id: %w", err)
	}

	params, err := c.buildConfirmationParams(ctx, identitySecret, deviceID)
	if err != nil {
		return nil, err
	}
	params.Set("l", "english")

	c.confGate.acquire()
	defer c.confGate.release()

	reqURL := "https://steamcommunity.com/mobileconf/conf?" + params.Encode()
	resp, err := c.executor.ExecuteRequest(ctx, "community", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return parseConfirmationsHTML(resp.Body)
}

// parseConfirmationsHTML extracts every div.mobileconf_list_entry node's
// data-confid/data-key/data-creator/data-type attributes. A missing or
// invalid field on any single entry voids the entire listing, since a
// partially-parsed confirmation can't be safely acted on.
func parseConfirmationsHTML(body io.Reader) ([]Confirmation, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse confirmation list HTML: %w", err)
	}

	nodes := doc.Find("div.mobileconf_list_entry")
	confirmations := make([]Confirmation, 0, nodes.Length())

	var parseErr error
	nodes.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		confID, ok := s.Attr("data-confid")
		if !ok || !isNonzeroUint64(confID) {
			parseErr = fmt.Errorf("entry missing or invalid data-confid %q", confID)
			return false
		}
		key, ok := s.Attr("data-key")
		if !ok || key == "" {
			parseErr = fmt.Errorf("entry %s missing data-key", confID)
			return false
		}
		creatorID, ok := s.Attr("data-creator")
		if !ok || !isNonzeroUint64(creatorID) {
			parseErr = fmt.Errorf("entry %s missing or invalid data-creator %q", confID, creatorID)
			return false
		}
		rawType, ok := s.Attr("data-type")
		if !ok {
			parseErr = fmt.Errorf("entry %s missing data-type", confID)
			return false
		}
		confType, ok := parseConfirmationType(rawType)
		if !ok {
			parseErr = fmt.Errorf("entry %s has unrecognized data-type %q", confID, rawType)
			return false
		}

		confirmations = append(confirmations, Confirmation{
			ID:        confID,
			Type:      confType,
			CreatorID: creatorID,
			Key:       key,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return confirmations, nil
}

func isNonzeroUint64(s string) bool {
	v, err := strconv.ParseUint(s, 10, 64)
	return err == nil && v != 0
}

func parseConfirmationType(s string) (ConfirmationType, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return ConfirmationTypeUnknown, false
	}
	switch ConfirmationType(v) {
	case ConfirmationTypeTrade, ConfirmationTypeMarketListing:
		return ConfirmationType(v), true
	default:
		return ConfirmationTypeUnknown, false
	}
}

// AcceptConfirmations batch-approves the given confirmations via
// multiajaxop, falling back to a sequential per-item ajaxop call for each
// one if the batch call reports success=false.
func (c *Community) AcceptConfirmations(ctx context.Context, confirmations []Confirmation, identitySecret []byte, deviceID string) error {
	return c.respondToConfirmations(ctx, confirmations, identitySecret, deviceID, true)
}

// RejectConfirmations batch-cancels the given confirmations, with the same
// per-item fallback as AcceptConfirmations.
func (c *Community) RejectConfirmations(ctx context.Context, confirmations []Confirmation, identitySecret []byte, deviceID string) error {
	return c.respondToConfirmations(ctx, confirmations, identitySecret, deviceID, false)
}

func (c *Community) respondToConfirmations(ctx context.Context, confirmations []Confirmation, identitySecret []byte, deviceID string, accept bool) error {
	if err := c.ensureInit(); err != nil {
		return err
	}
	if len(confirmations) == 0 {
		return nil
	}

	op := "cancel"
	if accept {
		op = "allow"
	}

	ok, err := c.multiAjaxOp(ctx, confirmations, identitySecret, deviceID, op)
	if err != nil {
		return fmt.Errorf("multiajaxop: %w", err)
	}
	if ok {
		return nil
	}

	// Batch call reported success=false: Steam is known to flake under
	// load here, so retry each confirmation individually in input order.
	for _, conf := range confirmations {
		if err := c.ajaxOp(ctx, conf, identitySecret, deviceID, op); err != nil {
			return fmt.Errorf("ajaxop fallback for %s: %w", conf.ID, err)
		}
	}
	return nil
}

// multiAjaxOp issues the batch accept/cancel call. The body is an ordered
// list of pairs, not a map, because cid[]/ck[] repeat one field name per
// confirmation and url.Values would collapse or reorder them.
func (c *Community) multiAjaxOp(ctx context.Context, confirmations []Confirmation, identitySecret []byte, deviceID, op string) (bool, error) {
	params, err := c.buildConfirmationParams(ctx, identitySecret, deviceID)
	if err != nil {
		return false, err
	}

	pairs := []orderedPair{
		{"a", params.Get("a")},
		{"k", params.Get("k")},
		{"m", "android"},
		{"op", op},
		{"p", params.Get("p")},
		{"t", params.Get("t")},
		{"tag", "conf"},
	}
	for _, conf := range confirmations {
		pairs = append(pairs, orderedPair{"cid[]", conf.ID})
		pairs = append(pairs, orderedPair{"ck[]", conf.Key})
	}
	pairs = append(pairs, orderedPair{"sessionid", c.sessionID})

	body := encodeOrderedPairs(pairs)
	resp, err := c.executor.ExecuteRequest(ctx, "community", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"https://steamcommunity.com/mobileconf/multiajaxop", strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}

	return result.Success, nil
}

// ajaxOp issues the single-confirmation fallback call. The per-item success
// value in the response body is not read (Steam's own flakiness makes it
// unreliable); a transport failure or a non-200 status returns an error,
// which aborts the fallback loop.
func (c *Community) ajaxOp(ctx context.Context, conf Confirmation, identitySecret []byte, deviceID, op string) error {
	params, err := c.buildConfirmationParams(ctx, identitySecret, deviceID)
	if err != nil {
		return err
	}
	params.Set("l", "english")
	params.Set("op", op)
	params.Set("cid", conf.ID)
	params.Set("ck", conf.Key)

	reqURL := "https://steamcommunity.com/mobileconf/ajaxop?" + params.Encode()
	resp, err := c.executor.ExecuteRequest(ctx, "community", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// AcceptConfirmationByCreatorID finds and accepts a confirmation by its
// creator ID. For trade offers the creator ID is the trade offer ID; for
// market listings it's the listing ID.
func (c *Community) AcceptConfirmationByCreatorID(ctx context.Context, identitySecret []byte, deviceID, creatorID string) error {
	conf, err := c.findConfirmationByCreatorID(ctx, identitySecret, deviceID, creatorID)
	if err != nil {
		return err
	}
	return c.AcceptConfirmations(ctx, []Confirmation{conf}, identitySecret, deviceID)
}

// RejectConfirmationByCreatorID finds and rejects a confirmation by its
// creator ID.
func (c *Community) RejectConfirmationByCreatorID(ctx context.Context, identitySecret []byte, deviceID, creatorID string) error {
	conf, err := c.findConfirmationByCreatorID(ctx, identitySecret, deviceID, creatorID)
	if err != nil {
		return err
	}
	return c.RejectConfirmations(ctx, []Confirmation{conf}, identitySecret, deviceID)
}

func (c *Community) findConfirmationByCreatorID(ctx context.Context, identitySecret []byte, deviceID, creatorID string) (Confirmation, error) {
	confirmations, err := c.GetConfirmations(ctx, identitySecret, deviceID)
	if err != nil {
		return Confirmation{}, fmt.Errorf("get confirmations: %w", err)
	}

	for _, conf := range confirmations {
		if conf.CreatorID == creatorID {
			return conf, nil
		}
	}
	return Confirmation{}, fmt.Errorf("confirmation with creator ID %s not found", creatorID)
}

// orderedPair is a single (name, value) entry of a form body where field
// names repeat (cid[]/ck[]) and url.Values's map representation would
// collapse or reorder them.
type orderedPair struct {
	name  string
	value string
}

func encodeOrderedPairs(pairs []orderedPair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
