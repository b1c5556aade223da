package transform

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteText writes p in the textual form:
//
//	<order> <a00> <a10> <a01> <a20> <a11> <a02> ...
//
// with the x-component coefficients followed by the y-component
// coefficients, both in the lexicographic-exponent order
// monomialTerms produces. ReadPolyText reproduces p's coefficients to
// machine precision from this text.
func (p *Poly) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d", p.Order); err != nil {
		return err
	}
	for _, v := range p.Ax {
		if _, err := fmt.Fprintf(bw, " %.17g", v); err != nil {
			return err
		}
	}
	for _, v := range p.Ay {
		if _, err := fmt.Fprintf(bw, " %.17g", v); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadPolyText parses the textual form WriteText produces.
func ReadPolyText(r io.Reader) (*Poly, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("transform: empty polynomial text")
	}
	order, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("transform: invalid order %q: %w", fields[0], err)
	}
	p := NewPoly(order)
	want := 2 * len(p.terms)
	if len(fields)-1 != want {
		return nil, fmt.Errorf("transform: expected %d coefficients for order %d, got %d", want, order, len(fields)-1)
	}
	for i := range p.Ax {
		v, err := strconv.ParseFloat(fields[1+i], 64)
		if err != nil {
			return nil, fmt.Errorf("transform: invalid coefficient %q: %w", fields[1+i], err)
		}
		p.Ax[i] = v
	}
	n := len(p.terms)
	for i := range p.Ay {
		v, err := strconv.ParseFloat(fields[1+n+i], 64)
		if err != nil {
			return nil, fmt.Errorf("transform: invalid coefficient %q: %w", fields[1+n+i], err)
		}
		p.Ay[i] = v
	}
	return p, nil
}
