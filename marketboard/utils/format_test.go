package utils

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xuri/excelize/v2"
)

func cost(v int64) *int64 { return &v }

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{9999999, "9,999,999"},
		{-1234567, "-1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in))
	}
}

func TestFormatRanking(t *testing.T) {
	table := RankingTable{
		Location:  "Zalera",
		Threshold: 20,
		UpdatedAt: time.Date(2024, 3, 9, 18, 5, 0, 0, time.UTC),
		Rows: []ranking.Row{
			{ItemID: 2, Name: "Rroneek Steak", Metric: 12500.4, Velocity: 25.5, AveCost: cost(1500), CostToCraft: cost(1000)},
			{ItemID: 1, Name: "Ore", Metric: 300, Velocity: 3, AveCost: cost(100)},
		},
	}

	msg := FormatRanking(table)
	lines := strings.Split(msg, "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, "**Data from Zalera > 20 avg daily sales @ 09/03/2024 18:05**", lines[0])
	assert.Equal(t, "```", lines[1])
	assert.Equal(t, []string{"Name", "Profit", "Avg-Sales", "Avg-Cost", "Avg-Cft-Cost"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"Rroneek", "Steak", "12,500", "25.5", "1,500", "1,000"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"Ore", "300", "3.0", "100", "-"}, strings.Fields(lines[4]))
	assert.Equal(t, "```", lines[5])

	// Columns are aligned.
	assert.Equal(t, strings.Index(lines[2], "Profit"), strings.Index(lines[3], "12,500"))
}

func TestFormatRanking_Headers(t *testing.T) {
	at := time.Date(2024, 12, 1, 7, 30, 0, 0, time.UTC)

	noCraft := FormatRanking(RankingTable{Location: "Aether", Threshold: 2.5, NoCraft: true, UpdatedAt: at})
	assert.True(t, strings.HasPrefix(noCraft, "*(No Craft Cost)* **Data from Aether > 2.5 avg daily sales @ 01/12/2024 07:30**"))

	gathering := FormatRanking(RankingTable{Location: "Aether", Threshold: 2, NoCraft: true, Gathering: true, UpdatedAt: at})
	assert.True(t, strings.HasPrefix(gathering, "*(Gathering)* "))
}

func TestFormatRanking_TruncatesToMessageLimit(t *testing.T) {
	rows := make([]ranking.Row, 200)
	for i := range rows {
		rows[i] = ranking.Row{ItemID: int64(i), Name: fmt.Sprintf("A Rather Long Item Name %03d", i), Metric: 1000}
	}

	msg := FormatRanking(RankingTable{Location: "Zalera", Threshold: 20, Rows: rows})
	assert.LessOrEqual(t, len(msg), config.DiscordMessageLimit)
	assert.True(t, strings.HasSuffix(msg, "```"))
	assert.Contains(t, msg, "Item Name 000")
	assert.NotContains(t, msg, "Item Name 199")
}

func TestExportRankings(t *testing.T) {
	var buf bytes.Buffer
	err := ExportRankings(&buf, map[string][]ranking.Row{
		"craft_profit_per_day": {
			{ItemID: 3, Name: "Sword", Metric: 750, Velocity: 1.5, AveCost: cost(1000), CostToCraft: cost(500)},
		},
		"raw_profit_per_day": {
			{ItemID: 1, Name: "Ore", Metric: 20, Velocity: 2},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"craft_profit_per_day", "raw_profit_per_day"}, f.GetSheetList())

	rows, err := f.GetRows("craft_profit_per_day")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Item ID", "Name", "Profit", "Avg-Sales", "Avg-Cost", "Avg-Cft-Cost"}, rows[0])
	assert.Equal(t, "Sword", rows[1][1])
	assert.Equal(t, "500", rows[1][5])

	rows, err = f.GetRows("raw_profit_per_day")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ore", rows[1][1])
}
