package metrology

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CalcSuite struct {
	suite.Suite
}

func TestCalcSuite(t *testing.T) {
	suite.Run(t, new(CalcSuite))
}

func (s *CalcSuite) TestMean() {
	s.InDelta(50.0, Mean(49.8, 50.0, 50.2), 1e-12)
	s.InDelta(0.0, Mean(0, 0, 0), 1e-12)
	s.InDelta(-1.0, Mean(-1, -1, -1), 1e-12)
}

func (s *CalcSuite) TestSignedError() {
	s.Run("positive when standard exceeds mean", func() {
		s.InDelta(0.5, SignedError(50.0, 49.5), 1e-12)
	})
	s.Run("negative when mean exceeds standard", func() {
		s.InDelta(-0.5, SignedError(50.0, 50.5), 1e-12)
	})
}

func (s *CalcSuite) TestRepeatability() {
	s.Run("identical readings give zero", func() {
		s.Zero(Repeatability(50, 50, 50))
	})

	s.Run("matches hand-computed sample stddev over sqrt(3)", func() {
		// readings 49.8, 50.0, 50.2: sample stddev = 0.2
		want := 0.2 / math.Sqrt(3)
		s.InDelta(want, Repeatability(49.8, 50.0, 50.2), 1e-12)
	})

	s.Run("never negative", func() {
		s.GreaterOrEqual(Repeatability(1, 5, 3), 0.0)
		s.GreaterOrEqual(Repeatability(-4, -9, -2), 0.0)
	})
}

func (s *CalcSuite) TestResolutionUncertainty() {
	s.InDelta(0.1/(2*math.Sqrt(3)), ResolutionUncertainty(0.1), 1e-12)
	s.Zero(ResolutionUncertainty(0))
}

func (s *CalcSuite) TestCombinedRoundTrip() {
	// RSS round-trip: recombining the stored contributors must reproduce the
	// stored combined value within floating-point tolerance.
	uStd, repeat, uRes := 0.3, 0.2/math.Sqrt(3), ResolutionUncertainty(0.1)
	combined := Combined(uStd, repeat, uRes)
	s.InDelta(combined, math.Sqrt(uStd*uStd+repeat*repeat+uRes*uRes), 1e-12)
	s.GreaterOrEqual(combined, uStd)
}

func (s *CalcSuite) TestExpanded() {
	s.InDelta(0.8, Expanded(0.4), 1e-12)
}

func (s *CalcSuite) TestRound1() {
	s.InDelta(0.1, Round1(0.05), 1e-12)
	s.InDelta(49.8, Round1(49.849), 1e-12)
	s.InDelta(-0.1, Round1(-0.1049), 1e-12)
}

type DeriveSuite struct {
	suite.Suite
	in Measurement
}

func TestDeriveSuite(t *testing.T) {
	suite.Run(t, new(DeriveSuite))
}

func (s *DeriveSuite) SetupTest() {
	s.in = Measurement{
		Standard:            50.0,
		M1:                  49.8,
		M2:                  50.0,
		M3:                  50.2,
		Resolution:          0.1,
		UncertaintyStandard: 0.3,
	}
}

func (s *DeriveSuite) TestDeriveFillsAbsentFields() {
	got := Derive(s.in, Derived{})

	s.True(got.Mean.Valid)
	s.InDelta(50.0, got.Mean.Value, 1e-12)
	s.InDelta(0.0, got.Error.Value, 1e-12)
	s.InDelta(0.2/math.Sqrt(3), got.Repeatability.Value, 1e-12)
	s.InDelta(Expanded(got.CombinedUncertainty.Value), got.ExpandedUncertainty.Value, 1e-12)
}

func (s *DeriveSuite) TestDeriveIsIdempotent() {
	first := Derive(s.in, Derived{})
	second := Derive(s.in, first)
	s.Equal(first, second)
}

func (s *DeriveSuite) TestDeriveNeverOverwritesProvidedValues() {
	existing := Derived{
		Mean:  Provided(42.0),
		Error: Provided(8.0),
	}
	got := Derive(s.in, existing)

	s.InDelta(42.0, got.Mean.Value, 1e-12)
	s.InDelta(8.0, got.Error.Value, 1e-12)
	// absent fields still get filled
	s.True(got.Repeatability.Valid)
	s.True(got.CombinedUncertainty.Valid)
	s.True(got.ExpandedUncertainty.Valid)
}

func (s *DeriveSuite) TestProvidedCombinedFeedsExpanded() {
	got := Derive(s.in, Derived{CombinedUncertainty: Provided(1.5)})
	s.InDelta(3.0, got.ExpandedUncertainty.Value, 1e-12)
}
