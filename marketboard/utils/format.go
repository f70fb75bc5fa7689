package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
)

const headerTimeLayout = "02/01/2006 15:04"

var rankingColumns = []string{"Name", "Profit", "Avg-Sales", "Avg-Cost", "Avg-Cft-Cost"}

func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if n < 0 {
		str = str[1:]
	}

	var result []byte
	for i := len(str) - 1; i >= 0; i-- {
		if (len(str)-i-1)%3 == 0 && i != len(str)-1 {
			result = append([]byte{','}, result...)
		}
		result = append([]byte{str[i]}, result...)
	}

	if n < 0 {
		return "-" + string(result)
	}
	return string(result)
}

// FormatOptionalCost renders a nullable cost, "-" when unknown.
func FormatOptionalCost(v *int64) string {
	if v == nil {
		return "-"
	}
	return FormatNumber(*v)
}

// RankingTable is one published ranking page.
type RankingTable struct {
	Location  string
	Threshold float64
	NoCraft   bool
	Gathering bool
	UpdatedAt time.Time
	Rows      []ranking.Row
}

func (t RankingTable) Header() string {
	var prefix string
	switch {
	case t.Gathering:
		prefix = "*(Gathering)* "
	case t.NoCraft:
		prefix = "*(No Craft Cost)* "
	}
	return fmt.Sprintf("%s**Data from %s > %s avg daily sales @ %s**",
		prefix,
		t.Location,
		strconv.FormatFloat(t.Threshold, 'f', -1, 64),
		t.UpdatedAt.Format(headerTimeLayout),
	)
}

// FormatRanking renders the table as a Discord message: a bold header line
// followed by an aligned code block. Trailing rows are dropped until the
// message fits Discord's content limit.
func FormatRanking(t RankingTable) string {
	rows := t.Rows
	for {
		msg := renderRanking(t.Header(), rows)
		if len(msg) <= config.DiscordMessageLimit || len(rows) == 0 {
			return msg
		}
		rows = rows[:len(rows)-1]
	}
}

func renderRanking(header string, rows []ranking.Row) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n```\n")

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rankingColumns, "\t"))
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\n",
			r.Name,
			FormatNumber(int64(math.Round(r.Metric))),
			r.Velocity,
			FormatOptionalCost(r.AveCost),
			FormatOptionalCost(r.CostToCraft),
		)
	}
	tw.Flush()

	sb.WriteString("```")
	return sb.String()
}

// FormatItemLine renders one ranked row for embeds.
func FormatItemLine(pos int, r ranking.Row) string {
	return fmt.Sprintf("`%2d.` **%s** %s gil (%.1f/day, avg %s, craft %s)",
		pos,
		r.Name,
		FormatNumber(int64(math.Round(r.Metric))),
		r.Velocity,
		FormatOptionalCost(r.AveCost),
		FormatOptionalCost(r.CostToCraft),
	)
}
