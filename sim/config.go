package sim

// ChronometerConfig groups the injectable collaborators of a Chronometer.
// Zero values select production behavior: system clock and RNG streams
// derived from Seed through PartitionedRNG.
type ChronometerConfig struct {
	Seed          int64  // master seed for variant and superposition streams
	Clock         Clock  // jitter and start-time source (nil = SystemClock)
	Superposition Source // per-tick superposition draws (nil = derived from Seed)
	Variants      Source // spawn-time variant assignment (nil = derived from Seed)
}

// NewChronometerConfig returns a config seeded with seed and all other
// collaborators defaulted.
func NewChronometerConfig(seed int64) ChronometerConfig {
	return ChronometerConfig{Seed: seed}
}

// resolve fills nil collaborators.
func (c ChronometerConfig) resolve() ChronometerConfig {
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Superposition == nil || c.Variants == nil {
		rng := NewPartitionedRNG(NewSimulationKey(c.Seed))
		if c.Superposition == nil {
			c.Superposition = rng.ForSubsystem(SubsystemSuperposition)
		}
		if c.Variants == nil {
			c.Variants = rng.ForSubsystem(SubsystemVariant)
		}
	}
	return c
}
