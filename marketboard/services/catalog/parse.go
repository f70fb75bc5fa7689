package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// Datamining CSVs carry three header rows: column keys, column names and
// column types. Data starts on the fourth row.
const headerRows = 3

const (
	recipeColCraftType   = 2
	recipeColLevelTable  = 3
	recipeColItemResult  = 4
	recipeColAmount      = 5
	recipeColIngredients = 6

	gatheringColItem = 1
	gatheringColFlag = 3
)

var utf8BOM = []byte("\xef\xbb\xbf")

func newReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

// readTable returns the column-name header row and the data rows.
func readTable(data []byte) ([]string, [][]string, error) {
	records, err := newReader(data).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < headerRows {
		return nil, nil, fmt.Errorf("expected %d header rows, got %d rows", headerRows, len(records))
	}
	return records[1], records[headerRows:], nil
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// ParseItems reads Item.csv, keeping rows whose id is marketable.
func ParseItems(data []byte, marketable map[int64]struct{}) ([]*models.Item, error) {
	header, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("item csv: %w", err)
	}
	nameCol := columnIndex(header, "Name")
	if nameCol < 0 {
		return nil, fmt.Errorf("item csv: no Name column")
	}

	items := make([]*models.Item, 0, len(marketable))
	for _, row := range rows {
		if len(row) <= nameCol {
			continue
		}
		id, err := parseID(row[0])
		if err != nil {
			continue
		}
		if _, ok := marketable[id]; !ok {
			continue
		}
		items = append(items, &models.Item{ID: id, Name: strings.TrimSpace(row[nameCol])})
	}
	return items, nil
}

// ParseRecipes reads Recipe.csv, keeping recipes whose result is marketable.
func ParseRecipes(data []byte, marketable map[int64]struct{}) ([]*models.Recipe, error) {
	_, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("recipe csv: %w", err)
	}

	minCols := recipeColIngredients + 2*config.IngredientSlots
	recipes := make([]*models.Recipe, 0, len(rows))
	for i, row := range rows {
		if len(row) < minCols {
			continue
		}
		ints, err := parseInts(row[:minCols])
		if err != nil {
			return nil, fmt.Errorf("recipe csv row %d: %w", i+headerRows+1, err)
		}

		result := ints[recipeColItemResult]
		if _, ok := marketable[result]; !ok {
			continue
		}

		r := &models.Recipe{
			ID:           ints[0],
			CraftType:    int(ints[recipeColCraftType]),
			RecipeLevel:  int(ints[recipeColLevelTable]),
			ItemResult:   result,
			AmountResult: int(ints[recipeColAmount]),
		}
		for slot := 0; slot < config.IngredientSlots; slot++ {
			itemID := ints[recipeColIngredients+2*slot]
			amount := ints[recipeColIngredients+2*slot+1]
			if itemID <= 0 || amount <= 0 {
				continue
			}
			r.SetSlot(slot, itemID, amount)
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// ParseGathering reads GatheringItem.csv and returns the gatherable item ids.
func ParseGathering(data []byte) (map[int64]struct{}, error) {
	_, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("gathering csv: %w", err)
	}

	ids := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		if len(row) <= gatheringColFlag || row[gatheringColFlag] != "True" {
			continue
		}
		id, err := parseID(row[gatheringColItem])
		if err != nil || id <= 0 {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

// World 38 is flagged public in the export but has no market board.
const excludedWorldID = 38

// ParseWorlds reads World.csv, keeping public worlds.
func ParseWorlds(data []byte) ([]*models.Location, error) {
	header, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("world csv: %w", err)
	}
	nameCol := columnIndex(header, "Name")
	dcCol := columnIndex(header, "DataCenter")
	publicCol := columnIndex(header, "IsPublic")
	if nameCol < 0 || dcCol < 0 || publicCol < 0 {
		return nil, fmt.Errorf("world csv: expected Name, DataCenter and IsPublic columns")
	}

	worlds := make([]*models.Location, 0, len(rows))
	for _, row := range rows {
		if len(row) <= max(nameCol, dcCol, publicCol) || row[publicCol] != "True" {
			continue
		}
		id, err := parseID(row[0])
		if err != nil || id == excludedWorldID {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		dc, _ := parseID(row[dcCol])
		worlds = append(worlds, &models.Location{
			Kind:       models.MarketboardWorld,
			Name:       name,
			GameID:     id,
			Datacentre: dc,
		})
	}
	return worlds, nil
}

// ParseDatacentres reads WorldDCGroupType.csv. Ids from 99 up are internal
// groups rather than player datacentres.
func ParseDatacentres(data []byte) ([]*models.Location, error) {
	header, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("datacentre csv: %w", err)
	}
	nameCol := columnIndex(header, "Name")
	if nameCol < 0 {
		return nil, fmt.Errorf("datacentre csv: no Name column")
	}

	dcs := make([]*models.Location, 0, len(rows))
	for _, row := range rows {
		if len(row) <= nameCol {
			continue
		}
		id, err := parseID(row[0])
		if err != nil || id < 1 || id >= 99 {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		dcs = append(dcs, &models.Location{Kind: models.MarketboardDatacentre, Name: name, GameID: id})
	}
	return dcs, nil
}

func parseInts(fields []string) ([]int64, error) {
	out := make([]int64, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		switch f {
		case "", "False":
			continue
		case "True":
			out[i] = 1
			continue
		}
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
