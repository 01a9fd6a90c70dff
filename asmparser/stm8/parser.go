// Package stm8 provides the asmparser implementation for SDCC generated
// STM8 assembly.
package stm8

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ChainSafe/stm8dce/asmparser"
)

// parserImpl implements the asmparser.Parser interface.
type parserImpl struct {
	logger *log.Logger
}

// NewParser returns a new instance of an STM8 assembly parser. A nil
// logger disables debug output.
func NewParser(logger *log.Logger) asmparser.Parser {
	return &parserImpl{logger: logger}
}

// Parse reads one assembly file and extracts its symbols.
func (p *parserImpl) Parse(path string) (*asmparser.Unit, error) {
	codefile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer func() {
		_ = codefile.Close()
	}()

	sc, err := NewScanner(path, codefile)
	if err != nil {
		return nil, err
	}
	p.debugf("parsing %s", path)
	return p.ParseScanner(sc)
}

// ParseScanner parses the remaining lines of sc as one unit.
func (p *parserImpl) ParseScanner(sc *Scanner) (*asmparser.Unit, error) {
	unit := &asmparser.Unit{Path: sc.Path(), Lines: sc.Len()}
	for {
		line, err := sc.Next()
		if errors.Is(err, ErrEndOfInput) {
			return unit, nil
		}

		if name, ok := Export(line); ok {
			p.debugf("line %d: global definition %s", sc.Line(), name)
			unit.Exports = append(unit.Exports, &asmparser.ExportedLabel{Location: p.loc(sc), Name: name})
			continue
		}
		if name, ok := Vector(line); ok {
			p.debugf("line %d: interrupt definition %s", sc.Line(), name)
			unit.Vectors = append(unit.Vectors, &asmparser.VectorEntry{Location: p.loc(sc), Name: name})
			continue
		}

		section, ok := Section(line)
		if !ok {
			continue
		}
		switch section {
		case SectionCode:
			functions, err := p.parseCodeSection(sc)
			if err != nil {
				return nil, err
			}
			unit.Functions = append(unit.Functions, functions...)
		case SectionConst:
			constants, err := p.parseConstSection(sc)
			if err != nil {
				return nil, err
			}
			unit.Constants = append(unit.Constants, constants...)
		}
	}
}

func (p *parserImpl) parseCodeSection(sc *Scanner) ([]*asmparser.Function, error) {
	p.debugf("line %d: code section starts here", sc.Line())
	var functions []*asmparser.Function
	for {
		line, err := sc.Next()
		if errors.Is(err, ErrEndOfInput) {
			break
		}
		if _, ok := Section(line); ok {
			if err := sc.Back(); err != nil {
				return nil, err
			}
			break
		}
		if name, ok := IsLabel(line); ok {
			fn, err := p.parseFunction(sc, name)
			if err != nil {
				return nil, err
			}
			functions = append(functions, fn)
		}
	}
	p.debugf("line %d: code section ends here", sc.Line())
	return functions, nil
}

func (p *parserImpl) parseConstSection(sc *Scanner) ([]*asmparser.Constant, error) {
	p.debugf("line %d: constants section starts here", sc.Line())
	var constants []*asmparser.Constant
	for {
		line, err := sc.Next()
		if errors.Is(err, ErrEndOfInput) {
			break
		}
		if _, ok := Section(line); ok {
			if err := sc.Back(); err != nil {
				return nil, err
			}
			break
		}
		if name, ok := IsLabel(line); ok {
			c, err := p.parseConstant(sc, name)
			if err != nil {
				return nil, err
			}
			constants = append(constants, c)
		}
	}
	p.debugf("line %d: constants section ends here", sc.Line())
	return constants, nil
}

// parseFunction consumes the body of the function whose label was just read.
func (p *parserImpl) parseFunction(sc *Scanner, name string) (*asmparser.Function, error) {
	p.debugf("line %d: function %s starts here", sc.Line(), name)
	fn := &asmparser.Function{
		Location: p.loc(sc),
		Name:     name,
		Empty:    true,
	}
	end, err := p.scanBody(sc, func(line string) {
		if IsInterruptReturn(line) {
			p.debugf("line %d: function %s detected as IRQ handler", sc.Line(), name)
			fn.IRQ = true
			return
		}
		fn.Empty = false

		if target, ok := Call(line); ok && !slices.Contains(fn.Calls, target) {
			p.debugf("line %d: call to %s", sc.Line(), target)
			fn.Calls = append(fn.Calls, target)
		}
		if label, ok := LabelLoad(line); ok && !slices.Contains(fn.LabelRefs, label) {
			p.debugf("line %d: load of %s", sc.Line(), label)
			fn.LabelRefs = append(fn.LabelRefs, label)
		}
	})
	if err != nil {
		return nil, err
	}
	fn.End = end
	if fn.Empty {
		p.debugf("line %d: function %s is empty", sc.Line(), name)
	}
	p.debugf("line %d: function %s ends here", sc.Line(), name)
	return fn, nil
}

// parseConstant consumes the data block whose label was just read.
func (p *parserImpl) parseConstant(sc *Scanner, name string) (*asmparser.Constant, error) {
	p.debugf("line %d: constant %s starts here", sc.Line(), name)
	c := &asmparser.Constant{Location: p.loc(sc), Name: name}
	end, err := p.scanBody(sc, func(string) {})
	if err != nil {
		return nil, err
	}
	c.End = end
	p.debugf("line %d: constant %s ends here", sc.Line(), name)
	return c, nil
}

// scanBody feeds every non-comment, non-blank line to visit until the next
// label or section directive, which is pushed back. It returns the exclusive
// end line of the body.
func (p *parserImpl) scanBody(sc *Scanner, visit func(line string)) (int, error) {
	for {
		line, err := sc.Next()
		if errors.Is(err, ErrEndOfInput) {
			return sc.Line() + 1, nil
		}
		if IsComment(line) || StripComment(line) == "" {
			continue
		}
		_, isLabel := IsLabel(line)
		_, isSection := Section(line)
		if isLabel || isSection {
			if err := sc.Back(); err != nil {
				return 0, err
			}
			return sc.Line() + 1, nil
		}
		visit(line)
	}
}

func (p *parserImpl) loc(sc *Scanner) asmparser.Location {
	return asmparser.Location{Path: sc.Path(), Line: sc.Line()}
}

func (p *parserImpl) debugf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

// ParseFiles parses every file concurrently and returns the units in the
// order of paths. Nothing is returned unless every file parsed.
func ParseFiles(ctx context.Context, parser asmparser.Parser, paths []string) ([]*asmparser.Unit, error) {
	units := make([]*asmparser.Unit, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit, err := parser.Parse(path)
			if err != nil {
				return fmt.Errorf("error parsing %s: %w", filepath.Base(path), err)
			}
			units[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}
