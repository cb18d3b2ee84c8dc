package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/worlddata"
)

func main() {
	var (
		file    = flag.String("world", "data/world.yaml", "YAML-файл мира")
		mapID   = flag.String("map", "", "показать только одну карту")
		showRaw = flag.Bool("rows", false, "печатать слои карты")
	)
	flag.Parse()

	w, err := worlddata.Load(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	reach := world.NewReachabilityAnalyzer(w.Registry)

	maps := w.Registry.Maps()
	if *mapID != "" {
		m, ok := w.Registry.Map(*mapID)
		if !ok {
			fmt.Fprintf(os.Stderr, "❌ карта %q не найдена\n", *mapID)
			os.Exit(1)
		}
		maps = []*world.Map{m}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "КАРТА\tЗОНА\tСЛОИ\tРАЗМЕР\tСПАВНЫ\tNPC-СЛОТЫ\tОБЪЕКТ-СЛОТЫ\tТРИГГЕРЫ\tДОСТИЖИМО\tНЕРАЗРЕШЕНО")
	for _, m := range maps {
		width, height := m.Bounds()
		reachable := "?"
		if tiles, err := reach.ReachableList(m.ID); err == nil {
			reachable = fmt.Sprint(len(tiles))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%dx%d\t%d\t%d\t%d\t%d\t%s\t%d\n",
			m.ID, m.Zone, m.LayerCount(), width, height,
			len(m.SpawnKeys()), len(m.NPCSlots()), len(m.ObjectSlots()),
			len(m.DynamicTriggers()), reachable, unresolvedCount(m))
	}
	_ = tw.Flush()

	for _, m := range maps {
		for _, symbol := range m.UnresolvedSymbols() {
			cells := m.Unresolved(symbol)
			if symbol == world.BlankSymbol {
				fmt.Printf("⚠️ %s: %d клеток дополнено за концом строк\n", m.ID, len(cells))
				continue
			}
			fmt.Printf("⚠️ %s: неизвестный символ %q в %d клетках, первая %v\n", m.ID, symbol, len(cells), cells[0])
		}
	}

	if len(w.MetroLines) > 0 {
		fmt.Println()
		lines := append(w.MetroLines[:0:0], w.MetroLines...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
		for _, l := range lines {
			fmt.Printf("🚇 %s → %s %v, в пути тиков: %d\n", l.ID, l.MapID, l.Arrival, l.Duration)
		}
	}

	if *showRaw {
		for _, m := range maps {
			for i := 0; i < m.LayerCount(); i++ {
				l, _ := m.Layer(i)
				fmt.Printf("\n%s / слой %d\n", m.ID, i)
				for _, row := range l.Rows() {
					fmt.Println(row)
				}
			}
		}
	}
}

func unresolvedCount(m *world.Map) int {
	n := 0
	for _, symbol := range m.UnresolvedSymbols() {
		if symbol != world.BlankSymbol {
			n += len(m.Unresolved(symbol))
		}
	}
	return n
}
