package registration

import "math"

// WelschWeight returns the Welsch robust weight exp(-d^2/(2*sigma^2)) of a
// correspondence at distance d. The weight is 1 at zero distance and decays
// smoothly toward 0 as the distance grows, so far-off correspondences lose
// influence instead of dominating the estimation. sigma <= 0 disables
// weighting and returns 1 for any distance.
func WelschWeight(d, sigma float32) float32 {
	if sigma <= 0 {
		return 1
	}
	fd, fs := float64(d), float64(sigma)
	return float32(math.Exp(-fd * fd / (2 * fs * fs)))
}
