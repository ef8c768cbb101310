package policy

import (
	"math"
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// compoundingCurve is the per-mode growth of the size factor.
type compoundingCurve struct {
	perWin    float64
	confSlope float64
	cap       float64
}

var (
	easyCurve = compoundingCurve{perWin: 0.1, confSlope: 5, cap: 2.5}
	hardCurve = compoundingCurve{perWin: 0.3, confSlope: 6, cap: 5.0}
)

const compoundingConfidencePivot = 0.96

// CompoundingEngine grows the position size factor with the win streak and
// confidence, resetting it on drawdown.
type CompoundingEngine struct {
	basePercent   float64
	drawdownReset float64
	modes         *ModeManager

	mu     sync.Mutex
	factor float64
}

// NewCompoundingEngine creates an engine. basePercent is the fraction of
// capital used as the base position.
func NewCompoundingEngine(basePercent, drawdownReset float64, modes *ModeManager) *CompoundingEngine {
	return &CompoundingEngine{
		basePercent:   basePercent,
		drawdownReset: drawdownReset,
		modes:         modes,
		factor:        1.0,
	}
}

func curveFor(mode string) compoundingCurve {
	if mode == models.ModeEasy {
		return easyCurve
	}
	return hardCurve
}

// Adjust recomputes the factor and returns it.
func (c *CompoundingEngine) Adjust(winStreak int, drawdown, confidence float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if drawdown > c.drawdownReset || winStreak <= 0 {
		c.factor = 1.0
		return c.factor
	}

	curve := curveFor(c.modes.Active().Name)
	streak := 1.0 + float64(winStreak)*curve.perWin
	boost := 1.0 + math.Max(0, (confidence-compoundingConfidencePivot)*curve.confSlope)
	c.factor = math.Min(streak*boost, curve.cap)
	return c.factor
}

// Factor returns the current factor.
func (c *CompoundingEngine) Factor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factor
}

// PositionSize returns capital*basePercent*factor rounded to cents.
func (c *CompoundingEngine) PositionSize(capital float64) float64 {
	return utils.Round2(capital * c.basePercent * c.Factor())
}

// Reset sets the factor back to 1.
func (c *CompoundingEngine) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factor = 1.0
}
