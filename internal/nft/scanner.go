// Package nft scans the objects an address owns and groups collectibles by collection.
package nft

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/sui-wrapped/internal/fetch"
	"github.com/yourorg/sui-wrapped/internal/model"
)

// DefaultBluechips are the type prefixes of collections flagged as bluechip.
var DefaultBluechips = []string{
	"0xee496a0cc04d06a345982ba6697c90c619020de9e8bf25a4a5b2a3ea3ae6e5b0::suifrens::",
	"0x034c162f6b594cb5a1805264dd01ca5d80ce3eca6522e6ee37fd9ebfb9d3ddca::factory::PrimeMachin",
	"0x57191e5e5c41166b90a4b7811ad3ec7a708fa8f7ab5d8c7b5d3cde6fbf7be3b0::bullshark::",
	"0x8f74a7d632191e29956df3843404f22d27bd84d92cca1b1abde621d033098769::rootlet::",
}

// typePattern captures the package and module of a Move struct type.
var typePattern = regexp.MustCompile(`^(0x[0-9a-fA-F]+)::([^:<]+)::`)

// Result is the grouped holdings plus scan bookkeeping.
type Result struct {
	Holdings model.NFTHoldings
	Pages    int
	Partial  bool
}

// Scanner pages through owned objects with a bounded page count.
type Scanner struct {
	ledger    fetch.Ledger
	pageSize  int
	pageDelay time.Duration
	maxPages  int
	bluechips []string
}

// NewScanner creates a Scanner that reads at most ten pages of fifty objects.
func NewScanner(ledger fetch.Ledger) *Scanner {
	return &Scanner{
		ledger:    ledger,
		pageSize:  50,
		pageDelay: 50 * time.Millisecond,
		maxPages:  10,
		bluechips: DefaultBluechips,
	}
}

// WithPaging sets page size, inter-page delay and the page cap.
func (s *Scanner) WithPaging(size int, delay time.Duration, maxPages int) *Scanner {
	if size > 0 {
		s.pageSize = size
	}
	s.pageDelay = delay
	if maxPages > 0 {
		s.maxPages = maxPages
	}
	return s
}

// WithBluechips replaces the bluechip type prefixes.
func (s *Scanner) WithBluechips(prefixes []string) *Scanner {
	s.bluechips = prefixes
	return s
}

// Scan groups the collectibles held by address. A failed page ends the scan and
// returns what was gathered so far; only caller cancellation is reported as an error.
func (s *Scanner) Scan(ctx context.Context, address string) (Result, error) {
	limit := rate.Inf
	if s.pageDelay > 0 {
		limit = rate.Every(s.pageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	log := logrus.WithField("address", address)

	var (
		res    Result
		cursor string
		groups = make(map[string]*model.NFTHolding)
	)

	for res.Pages < s.maxPages {
		if err := limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		page, err := s.ledger.OwnedObjects(ctx, address, cursor, s.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			log.WithError(err).Warnf("NFT scan aborted on page %d", res.Pages+1)
			res.Partial = true
			break
		}
		res.Pages++

		for _, obj := range page.Data {
			s.collect(groups, obj)
		}
		if !page.HasNextPage || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
		if res.Pages == s.maxPages {
			log.Debugf("NFT scan stopped at page cap %d", s.maxPages)
		}
	}

	res.Holdings = summarize(groups)
	return res, nil
}

func (s *Scanner) collect(groups map[string]*model.NFTHolding, obj fetch.OwnedObject) {
	if !IsCollectible(obj) {
		return
	}

	key, name := CollectionKey(obj.Type)
	h, ok := groups[key]
	if !ok {
		h = &model.NFTHolding{
			Collection:  key,
			DisplayName: name,
			IsBluechip:  s.isBluechip(obj.Type),
		}
		groups[key] = h
	}
	h.Count++
	if h.ImageURL == "" {
		h.ImageURL = obj.Display["image_url"]
	}
}

func (s *Scanner) isBluechip(objectType string) bool {
	lower := strings.ToLower(objectType)
	for _, prefix := range s.bluechips {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// IsCollectible keeps typed, non-coin objects that expose a display name or image.
func IsCollectible(obj fetch.OwnedObject) bool {
	if obj.Type == "" {
		return false
	}
	if strings.Contains(obj.Type, "::coin::") || strings.Contains(obj.Type, "::sui::") {
		return false
	}
	return obj.Display["name"] != "" || obj.Display["image_url"] != ""
}

// CollectionKey returns the package::module key of a type and a readable module name.
func CollectionKey(objectType string) (key, displayName string) {
	m := typePattern.FindStringSubmatch(objectType)
	if m == nil {
		return model.UnknownProtocol, "Unknown"
	}
	return strings.ToLower(m[1]) + "::" + m[2], humanize(m[2])
}

func humanize(module string) string {
	words := strings.Fields(strings.ReplaceAll(module, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// summarize orders bluechips first, then by count, then by key.
func summarize(groups map[string]*model.NFTHolding) model.NFTHoldings {
	out := model.NFTHoldings{Holdings: make([]model.NFTHolding, 0, len(groups))}
	for _, h := range groups {
		out.Holdings = append(out.Holdings, *h)
		out.TotalNFTs += h.Count
		if h.IsBluechip {
			out.BluechipCount++
		}
	}
	sort.Slice(out.Holdings, func(i, j int) bool {
		a, b := out.Holdings[i], out.Holdings[j]
		if a.IsBluechip != b.IsBluechip {
			return a.IsBluechip
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Collection < b.Collection
	})
	return out
}
