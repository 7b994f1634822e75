package postgres

import (
	"strconv"
	"strings"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// queryBuilder numbers "?" placeholders as $1..$n in the order fragments
// are added.
type queryBuilder struct {
	b    strings.Builder
	args []any
}

func (q *queryBuilder) add(fragment string, args ...any) {
	for _, r := range fragment {
		if r == '?' {
			q.args = append(q.args, nil)
			q.b.WriteString("$" + strconv.Itoa(len(q.args)))
			continue
		}
		q.b.WriteRune(r)
	}
	copy(q.args[len(q.args)-len(args):], args)
}

func (q *queryBuilder) page(opts domain.ListOpts) {
	if opts.Limit > 0 {
		q.add(" LIMIT ?", opts.Limit)
	}
	if opts.Offset > 0 {
		q.add(" OFFSET ?", opts.Offset)
	}
}

func (q *queryBuilder) sql() string {
	return q.b.String()
}
