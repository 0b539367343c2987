package idhash

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"

	"swap-risk-lab/internal/domain"
)

// ObligationDigest computes a digest of a contract's obligations and their
// trigger counts, independent of surrogate ids and row order.
// Formula: base58(SHA256(sorted lines of type|amount|currency|due|status|triggers)).
// Amounts are rounded to cents so float noise does not change the digest.
func ObligationDigest(obligations []*domain.SwapObligation, triggerCounts []int) string {
	lines := make([]string, len(obligations))
	for i, o := range obligations {
		due := "contingent"
		if o.DueDate != nil {
			due = o.DueDate.Format("2006-01-02")
		}
		n := 0
		if i < len(triggerCounts) {
			n = triggerCounts[i]
		}
		lines[i] = fmt.Sprintf("%s|%.2f|%s|%s|%s|%d",
			o.Type, o.Amount, o.Currency, due, o.Status, n)
	}
	sort.Strings(lines)

	hash := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return base58.Encode(hash[:])
}
