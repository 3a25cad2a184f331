// Package ssm implements the exact-diffuse univariate Kalman filter,
// the corresponding backward smoother, and the analytic likelihood
// gradient for linear Gaussian state-space models:
//
//	alpha(t+1) = c(t+1) + T(t+1) alpha(t) + R(t+1) eta(t+1)   eta ~ N(0, Q(t+1))
//	y(t)       = d(t) + Z(t) alpha(t) + eps(t)                eps ~ N(0, H(t))
//
// Parameters may be time-invariant or time-varying, observations may be
// partially missing, and the initial state may be partially diffuse
// (infinite prior variance on a subset of state directions). The package
// is a pure numerical core: it allocates its own scratch tensors per call,
// performs no I/O, and holds no package-level mutable state. Callers that
// need parameter estimation, mixed-frequency construction, or a
// parameter-to-vector bijection should layer those concerns on top (see
// the sibling varmodel package for one such caller).
package ssm
