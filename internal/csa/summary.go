package csa

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/shogi"
)

// TimeRule is one side's clock setting in seconds.
type TimeRule struct {
	Total   int
	Byoyomi int
}

// GameSummary is what the server proposes in the Game_Summary block. It is
// complete before the event carrying it is queued.
type GameSummary struct {
	GameID    string
	BlackName string
	WhiteName string
	YourTurn  shogi.Color
	ToMove    shogi.Color
	MaxMoves  int
	Time      [2]TimeRule
	// Record holds the starting position and any moves already played.
	Record *shogi.Record
	// Err is set when the block was read completely but cannot be played.
	Err error
}

func (g *GameSummary) Name(c shogi.Color) string {
	if c == shogi.White {
		return g.WhiteName
	}
	return g.BlackName
}

type lineSource interface {
	Receive() (string, error)
}

var (
	summaryIgnored = map[string]bool{
		"Protocol_Version": true,
		"Protocol_Mode":    true,
		"Format":           true,
		"Declaration":      true,
		"Rematch_On_Draw":  true,
	}
	timeIgnored = map[string]bool{
		"Time_Unit":           true,
		"Least_Time_Per_Move": true,
		"Time_Roundup":        true,
		"Increment":           true,
		"Delay":               true,
	}
)

type summaryParser struct {
	src    lineSource
	logger *zap.Logger
	sum    *GameSummary
	sawYou bool
}

// parseSummary consumes the lines after "BEGIN Game_Summary" up to and
// including "END Game_Summary". Only a failing source is returned as an
// error; problems with the content end up in GameSummary.Err.
func parseSummary(src lineSource, logger *zap.Logger) (*GameSummary, error) {
	p := &summaryParser{src: src, logger: logger, sum: &GameSummary{}}
	var positionLines []string
	for {
		line, err := src.Receive()
		if err != nil {
			return nil, err
		}
		switch {
		case line == "END Game_Summary":
			return p.finish(positionLines), nil
		case line == "BEGIN Time":
			if err := p.timeBlock("END Time", shogi.Black, shogi.White); err != nil {
				return nil, err
			}
		case line == "BEGIN Time+":
			if err := p.timeBlock("END Time+", shogi.Black); err != nil {
				return nil, err
			}
		case line == "BEGIN Time-":
			if err := p.timeBlock("END Time-", shogi.White); err != nil {
				return nil, err
			}
		case line == "BEGIN Position":
			if positionLines, err = p.positionBlock(); err != nil {
				return nil, err
			}
		case matchWildcard("*:*", line):
			p.summaryKey(line)
		default:
			p.logger.Warn("unexpected summary line", zap.String("line", line))
		}
	}
}

func splitKey(line string) (string, string) {
	k, v, _ := strings.Cut(line, ":")
	return k, v
}

func (p *summaryParser) summaryKey(line string) {
	k, v := splitKey(line)
	switch k {
	case "Your_Turn":
		c, err := shogi.ColorFromSign(v)
		if err != nil {
			p.protocolError(line, err)
			return
		}
		p.sum.YourTurn, p.sawYou = c, true
	case "Game_ID":
		p.sum.GameID = v
	case "Name+":
		p.sum.BlackName = v
	case "Name-":
		p.sum.WhiteName = v
	case "To_Move":
		c, err := shogi.ColorFromSign(v)
		if err != nil {
			p.protocolError(line, err)
			return
		}
		p.sum.ToMove = c
	case "Max_Moves":
		n, err := strconv.Atoi(v)
		if err != nil {
			p.protocolError(line, err)
			return
		}
		p.sum.MaxMoves = n
	default:
		if summaryIgnored[k] {
			p.logger.Debug("summary key ignored", zap.String("line", line))
			return
		}
		p.logger.Warn("unsupported summary key", zap.String("line", line))
	}
}

func (p *summaryParser) timeBlock(end string, sides ...shogi.Color) error {
	for {
		line, err := p.src.Receive()
		if err != nil {
			return err
		}
		if line == end {
			return nil
		}
		if !matchWildcard("*:*", line) {
			p.logger.Warn("unexpected time line", zap.String("line", line))
			continue
		}
		k, v := splitKey(line)
		switch k {
		case "Total_Time", "Byoyomi":
			n, err := strconv.Atoi(v)
			if err != nil {
				p.protocolError(line, err)
				continue
			}
			for _, c := range sides {
				if k == "Total_Time" {
					p.sum.Time[c].Total = n
				} else {
					p.sum.Time[c].Byoyomi = n
				}
			}
		default:
			if timeIgnored[k] {
				p.logger.Debug("time key ignored", zap.String("line", line))
				continue
			}
			p.logger.Warn("unsupported time key", zap.String("line", line))
		}
	}
}

func (p *summaryParser) positionBlock() ([]string, error) {
	var lines []string
	for {
		line, err := p.src.Receive()
		if err != nil {
			return nil, err
		}
		if line == "END Position" {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func (p *summaryParser) protocolError(line string, err error) {
	p.logger.Warn("summary line dropped", zap.Error(&ProtocolError{Line: line, Cause: err}))
}

func (p *summaryParser) finish(positionLines []string) *GameSummary {
	sum := p.sum
	var problems []error
	if !p.sawYou {
		problems = append(problems, errors.New("missing Your_Turn"))
	}
	if sum.GameID == "" {
		problems = append(problems, errors.New("missing Game_ID"))
	}
	if len(positionLines) == 0 {
		problems = append(problems, errors.New("missing position"))
	} else {
		rec, err := shogi.ParsePositionBlock(positionLines)
		if err != nil {
			problems = append(problems, fmt.Errorf("position: %w", err))
		} else {
			sum.Record = rec
			if rec.Position().Turn() != sum.ToMove {
				p.logger.Warn("To_Move disagrees with position",
					zap.Stringer("to_move", sum.ToMove), zap.Stringer("position", rec.Position().Turn()))
			}
		}
	}
	if len(problems) > 0 {
		sum.Err = fmt.Errorf("%w: %w", ErrInvalidSummary, errors.Join(problems...))
	}
	return sum
}
