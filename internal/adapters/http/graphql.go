package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SpotMarker",
		Fields: graphql.Fields{
			"kind":            &graphql.Field{Type: graphql.String},
			"id":              &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: geoPointType},
			"display_name":    &graphql.Field{Type: graphql.String},
			"available_spots": &graphql.Field{Type: graphql.Int},
			"total_spots":     &graphql.Field{Type: graphql.Int},
			"is_open":         &graphql.Field{Type: graphql.Boolean},
		},
	})

	spotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PublicSpot",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: geoPointType},
			"display_name":    &graphql.Field{Type: graphql.String},
			"available_spots": &graphql.Field{Type: graphql.Int},
			"total_spots":     &graphql.Field{Type: graphql.Int},
			"expires_at":      &graphql.Field{Type: graphql.String},
			"status":          &graphql.Field{Type: graphql.String},
			"owner_user_id":   &graphql.Field{Type: graphql.String},
		},
	})

	instructionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteInstruction",
		Fields: graphql.Fields{
			"text":             &graphql.Field{Type: graphql.String},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Float},
			"anchor":           &graphql.Field{Type: geoPointType},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteSummary",
		Fields: graphql.Fields{
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Float},
			"instructions":     &graphql.Field{Type: graphql.NewList(instructionType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"markers": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "The combined map snapshot: public spots plus private parkings",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Spots.Markers(p.Context)
				},
			},
			"markersNearby": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "Markers near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Spots.NearbyMarkers(p.Context, lat, lon, radius, limit)
				},
			},
			"spot": &graphql.Field{
				Type:        spotType,
				Description: "Get a public spot by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Spots.GetSpot(p.Context, id)
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Preview a route between two points",
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routing.Route(p.Context,
						domain.GeoPoint{Lat: p.Args["fromLat"].(float64), Lon: p.Args["fromLon"].(float64)},
						domain.GeoPoint{Lat: p.Args["toLat"].(float64), Lon: p.Args["toLon"].(float64)})
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// graphqlRequest is the POST /graphql body.
type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		return func(c *fiber.Ctx) error {
			return errInternal(c, "graphql schema: "+err.Error())
		}
	}

	return func(c *fiber.Ctx) error {
		var req graphqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid GraphQL request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			OperationName:  req.OperationName,
			VariableValues: req.Variables,
			Context:        c.Context(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Warn("graphql query failed",
				"operation", req.OperationName, "errors", len(result.Errors))
		}
		return c.JSON(result)
	}
}
