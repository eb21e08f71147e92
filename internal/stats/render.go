package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"islandga/internal/model"
)

func RenderRuns(w io.Writer, runs []model.RunRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"RUN", "PROBLEM", "DIMS", "SUBPOPS", "GENERATIONS", "REASON", "BEST", "ELAPSED", "CREATED"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.Problem,
			run.Dimensions,
			run.SubPopulations,
			humanize.Comma(int64(run.Generations)),
			run.Reason,
			formatFitness(run.BestFitness),
			(time.Duration(run.ElapsedMillis) * time.Millisecond).String(),
			humanize.Time(run.CreatedAt),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "TOTAL", len(runs)})
	t.Render()
}

// RenderGenerations prints one row per recorded generation. limit keeps the
// last rows only when positive.
func RenderGenerations(w io.Writer, history model.GenerationHistory, limit int) {
	rows := history.Generations
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("run %s", history.RunID))
	t.AppendHeader(table.Row{"GEN", "BEST", "MEAN", "WORST", "STDDEV", "COUNT", "MIGRATED"})
	for _, g := range rows {
		migrated := ""
		if g.Migrated {
			migrated = "yes"
		}
		t.AppendRow(table.Row{
			g.Generation,
			formatFitness(g.Summary.Min),
			formatFitness(g.Summary.Mean),
			formatFitness(g.Summary.Max),
			formatFitness(g.Summary.StdDev),
			g.Summary.Count,
			migrated,
		})
	}
	t.Render()
}

// RenderPopulation prints the top individuals of a population snapshot.
func RenderPopulation(w io.Writer, snapshot model.PopulationSnapshot, limit int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("run %s generation %d", snapshot.RunID, snapshot.Generation))
	t.AppendHeader(table.Row{"SUBPOP", "BIRTH", "ORIGIN", "FITNESS", "GENES"})
	for i, ind := range snapshot.Individuals {
		if limit > 0 && i >= limit {
			break
		}
		t.AppendRow(table.Row{ind.SubPopulation, ind.Birth, ind.Origin, formatFitness(ind.Fitness), fmt.Sprint(ind.Genes)})
	}
	t.Render()
}
