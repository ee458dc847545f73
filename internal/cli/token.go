package cli

import (
	"time"

	"github.com/spf13/cobra"

	jwttoken "signals/internal/jwt_token"
)

// NewTokenCommand mints a bearer token for CityControl's callbacks.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a callback token for the inbound SOAP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := rootOpts.config.Server
			jwtService := jwttoken.NewJWTService(srv.JWTSigningKey, srv.JWTIssuer, srv.JWTAudience)
			token, err := jwtService.GenerateServiceToken(subject, jwttoken.ScopeSigmaxCallback, ttl)
			if err != nil {
				return WrapExitError(ExitFailure, "generate token", err)
			}
			return rootOpts.print(cmd, token, map[string]any{
				"token":      token,
				"subject":    subject,
				"expires_in": int64(ttl.Seconds()),
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "citycontrol", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "token lifetime")
	return cmd
}
