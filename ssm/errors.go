package ssm

import "fmt"

// ShapeMismatchError reports a dimensional inconsistency detected by
// Validate (C2): a parameter slice or the data matrix does not have the
// shape the model declares.
type ShapeMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("ssm: shape mismatch for %s: want %s, got %s", e.Field, e.Want, e.Got)
}

// UnknownParameterError reports a non-finite parameter entry found at
// filter entry.
type UnknownParameterError struct {
	Field string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("ssm: non-finite entry in parameter %s", e.Field)
}

// NonStationarySectionError reports that the stationary block identified
// by the initializer (C3) still fails the spectral-radius check after
// partitioning.
type NonStationarySectionError struct {
	SpectralRadius float64
}

func (e *NonStationarySectionError) Error() string {
	return fmt.Sprintf("ssm: stationary section spectral radius %.6g is not < 1 after partitioning", e.SpectralRadius)
}

// LyapunovFailureError reports that the discrete Lyapunov solve for the
// stationary initial covariance (C3) was singular, even after the
// doubling-iteration fallback.
type LyapunovFailureError struct {
	Cause error
}

func (e *LyapunovFailureError) Error() string {
	return fmt.Sprintf("ssm: Lyapunov solve failed: %v", e.Cause)
}

func (e *LyapunovFailureError) Unwrap() error { return e.Cause }

// NonPSDObservationCovError reports that the LDL factorization of the
// observation covariance (C4) hit a non-positive pivot.
type NonPSDObservationCovError struct {
	Time int
}

func (e *NonPSDObservationCovError) Error() string {
	return fmt.Sprintf("ssm: observation covariance is not PSD at period %d", e.Time)
}

// DegenerateDiffuseInitError reports that the diffuse block of the
// covariance never collapsed to zero within the sample (C5).
type DegenerateDiffuseInitError struct {
	Periods int
}

func (e *DegenerateDiffuseInitError) Error() string {
	return fmt.Sprintf("ssm: diffuse initialization did not collapse within %d periods", e.Periods)
}
