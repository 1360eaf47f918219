package jobsheet

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Engine writes the PDF for a sheet to dst. Engines may use the structured
// sheet, the rendered HTML, or both.
type Engine interface {
	WritePDF(ctx context.Context, sheet Sheet, html []byte, dst string) error
}

// MarotoEngine lays the sheet out in process.
type MarotoEngine struct{}

var (
	titleStyle  = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Left}
	headStyle   = props.Text{Size: 9, Style: fontstyle.Bold}
	headNum     = props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	cellStyle   = props.Text{Size: 9}
	cellNum     = props.Text{Size: 9, Align: align.Right}
	footerStyle = props.Text{Size: 7, Align: align.Right}
)

func (MarotoEngine) WritePDF(ctx context.Context, s Sheet, _ []byte, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).
		WithRightMargin(12).
		WithTopMargin(12).
		Build()
	m := maroto.New(cfg)

	m.AddRow(10, text.NewCol(12, s.GarageName, titleStyle))
	m.AddRow(6, text.NewCol(12, "Job sheet #"+strconv.FormatUint(uint64(s.JobID), 10), props.Text{Size: 10}))
	m.AddRows(
		row.New(6).Add(
			text.NewCol(2, "Customer", headStyle), text.NewCol(4, s.CustomerName, cellStyle),
			text.NewCol(2, "Vehicle", headStyle), text.NewCol(4, s.VehicleReg, cellStyle),
		),
		row.New(6).Add(
			text.NewCol(2, "Date in", headStyle), text.NewCol(4, s.DateIn, cellStyle),
			text.NewCol(2, "Status", headStyle), text.NewCol(4, s.Status, cellStyle),
		),
		row.New(6).Add(
			text.NewCol(2, "Payment", headStyle), text.NewCol(10, s.PaymentStatus, cellStyle),
		),
	)

	m.AddRow(10, text.NewCol(12, "Services", props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}))
	m.AddRows(line.NewRow(1))
	m.AddRow(6,
		text.NewCol(3, "Service", headStyle),
		text.NewCol(3, "Part", headStyle),
		text.NewCol(1, "Qty", headNum),
		text.NewCol(2, "Parts", headNum),
		text.NewCol(1, "Labour", headNum),
		text.NewCol(2, "Total", headNum),
	)
	if len(s.Lines) == 0 {
		m.AddRow(6, text.NewCol(12, "No services recorded.", cellStyle))
	}
	for _, l := range s.Lines {
		m.AddRow(6,
			text.NewCol(3, l.Name, cellStyle),
			text.NewCol(3, l.Part, cellStyle),
			text.NewCol(1, strconv.Itoa(l.Quantity), cellNum),
			text.NewCol(2, l.PartCost, cellNum),
			text.NewCol(1, l.LabourCost, cellNum),
			text.NewCol(2, l.Total, cellNum),
		)
	}

	m.AddRow(10, text.NewCol(12, "Payments", props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}))
	m.AddRows(line.NewRow(1))
	if len(s.Payments) == 0 {
		m.AddRow(6, text.NewCol(12, "No payments recorded.", cellStyle))
	}
	for _, p := range s.Payments {
		m.AddRow(6, text.NewCol(6, p.Date, cellStyle), text.NewCol(6, p.Amount, cellNum))
	}

	m.AddRow(4)
	m.AddRow(6, text.NewCol(9, "Total", headNum), text.NewCol(3, s.Total, cellNum))
	m.AddRow(6, text.NewCol(9, "Paid", headNum), text.NewCol(3, s.Paid, cellNum))
	m.AddRow(6, text.NewCol(9, "Amount due", headNum), text.NewCol(3, s.Due, headNum))
	m.AddRow(10, text.NewCol(12, "Generated "+s.GeneratedAt, footerStyle))

	doc, err := m.Generate()
	if err != nil {
		return fmt.Errorf("maroto generate: %w", err)
	}
	if err := doc.Save(dst); err != nil {
		return fmt.Errorf("maroto save: %w", err)
	}
	return nil
}

// CommandEngine pipes the HTML to an external converter such as wkhtmltopdf.
// The command line is Bin, Args, then the destination path.
type CommandEngine struct {
	Bin  string
	Args []string
}

// NewCommandEngine returns an engine invoking a wkhtmltopdf compatible binary
// that reads HTML from stdin.
func NewCommandEngine(bin string) CommandEngine {
	return CommandEngine{Bin: bin, Args: []string{"--quiet", "-"}}
}

func (e CommandEngine) WritePDF(ctx context.Context, _ Sheet, html []byte, dst string) error {
	args := append(append([]string{}, e.Args...), dst)
	cmd := exec.CommandContext(ctx, e.Bin, args...)
	cmd.Stdin = bytes.NewReader(html)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", e.Bin, err)
		}
		return fmt.Errorf("%s: %w: %s", e.Bin, err, msg)
	}
	return nil
}
