package catalog_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/batmanuel-sandbox/jointcal/catalog"
	"github.com/batmanuel-sandbox/jointcal/star"
)

func TestLoadCatalogue(t *testing.T) {
	const data = `# id x y flux errX errY errFlux
s1, 10.0, 20.0, 100.0, 0.01, 0.02, 1.0
s2, 30.0, 40.0, 200.0
`
	refs, err := catalog.LoadCatalogue(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	if refs[0].ID != "s1" || refs[0].X != 10.0 || refs[0].Y != 20.0 || refs[0].Flux != 100.0 {
		t.Errorf("refs[0] = %+v", refs[0])
	}
	if refs[0].ErrX != 0.01 || refs[0].ErrFlux != 1.0 {
		t.Errorf("refs[0] errors = %+v", refs[0])
	}
	if refs[1].ID != "s2" || refs[1].ErrX != 0 {
		t.Errorf("refs[1] = %+v", refs[1])
	}
}

func TestLoadCatalogueRejectsShortRows(t *testing.T) {
	_, err := catalog.LoadCatalogue(strings.NewReader("s1, 10.0, 20.0\n"))
	if err == nil {
		t.Fatal("expected an error for a too-short row")
	}
}

func TestLoadMeasuredCatalogue(t *testing.T) {
	const data = "m1 1.0 2.0 50.0\nm2 3.0 4.0 60.0\n"
	ccd := star.NewCcdImage("ccd00")
	ms, err := catalog.LoadMeasuredCatalogue(strings.NewReader(data), ccd)
	if err != nil {
		t.Fatalf("LoadMeasuredCatalogue: %v", err)
	}
	if len(ms) != 2 || len(ccd.Measured) != 2 {
		t.Fatalf("got %d measured stars, want 2", len(ms))
	}
	if ccd.Measured[0].Ccd != ccd {
		t.Error("measured star not wired back to its CcdImage")
	}
	if !ms[0].Valid {
		t.Error("loaded measured star should start Valid")
	}
}

func TestAssignFittedStarsGroupsByProximity(t *testing.T) {
	assoc := star.NewAssociations()
	ccd := star.NewCcdImage("ccd00")
	assoc.AddCcdImage(ccd)

	data := "a 0.0 0.0 10.0\nb 0.2 0.1 12.0\nc 50.0 50.0 20.0\n"
	if _, err := catalog.LoadMeasuredCatalogue(strings.NewReader(data), ccd); err != nil {
		t.Fatalf("LoadMeasuredCatalogue: %v", err)
	}

	catalog.AssignFittedStars(assoc, 1.0)

	if len(assoc.FittedStars) != 2 {
		t.Fatalf("got %d fitted stars, want 2 (one cluster near origin, one far)", len(assoc.FittedStars))
	}
	if err := assoc.CheckInvariant(); err != nil {
		t.Errorf("CheckInvariant: %v", err)
	}
}

func TestAssignFittedStarsLinksReferences(t *testing.T) {
	assoc := star.NewAssociations()
	ccd := star.NewCcdImage("ccd00")
	assoc.AddCcdImage(ccd)

	if _, err := catalog.LoadMeasuredCatalogue(strings.NewReader("a 1.0 1.0 10.0\n"), ccd); err != nil {
		t.Fatalf("LoadMeasuredCatalogue: %v", err)
	}
	refs, err := catalog.LoadCatalogue(strings.NewReader("r1, 1.01, 0.99, 10.5\n"))
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	for i := range refs {
		assoc.AddRefStar(&refs[i])
	}

	catalog.AssignFittedStars(assoc, 0.5)

	if len(assoc.FittedStars) != 1 {
		t.Fatalf("got %d fitted stars, want 1", len(assoc.FittedStars))
	}
	if assoc.FittedStars[0].RefStar == nil {
		t.Fatal("expected the fitted star to be linked to the nearby reference star")
	}
}

func TestWriteChi2Diagnostics(t *testing.T) {
	rows := []catalog.DiagnosticRow{
		{StarID: "m1", X: 1, Y: 2, Residual: 0.1, Chi2: 0.5, Ndof: 2, IsReference: false},
		{StarID: "r1", X: 3, Y: 4, Residual: 0.2, Chi2: 1.5, Ndof: 2, IsReference: true},
	}
	written := map[string]*bytes.Buffer{}
	open := func(name string) (io.WriteCloser, error) {
		buf := &bytes.Buffer{}
		written[name] = buf
		return nopCloser{buf}, nil
	}
	if err := catalog.WriteChi2Diagnostics("out.csv", rows, open); err != nil {
		t.Fatalf("WriteChi2Diagnostics: %v", err)
	}
	if _, ok := written["out-meas.csv"]; !ok {
		t.Error("missing out-meas.csv")
	}
	if _, ok := written["out-ref.csv"]; !ok {
		t.Error("missing out-ref.csv")
	}
	if !strings.Contains(written["out-meas.csv"].String(), "m1") {
		t.Error("measured table missing its row")
	}
	if !strings.Contains(written["out-ref.csv"].String(), "r1") {
		t.Error("reference table missing its row")
	}
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }
