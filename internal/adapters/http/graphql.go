package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the directory services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	agencyFields := graphql.Fields{
		"id":              &graphql.Field{Type: graphql.String},
		"slug":            &graphql.Field{Type: graphql.String},
		"title":           &graphql.Field{Type: graphql.String},
		"total_score":     &graphql.Field{Type: graphql.Float},
		"reviews_count":   &graphql.Field{Type: graphql.Int},
		"street":          &graphql.Field{Type: graphql.String},
		"city":            &graphql.Field{Type: graphql.String},
		"city_normalized": &graphql.Field{Type: graphql.String},
		"country_code":    &graphql.Field{Type: graphql.String},
		"country":         &graphql.Field{Type: graphql.String},
		"website":         &graphql.Field{Type: graphql.String},
		"phone":           &graphql.Field{Type: graphql.String},
		"category":        &graphql.Field{Type: graphql.String},
		"featured":        &graphql.Field{Type: graphql.Boolean},
		"verified":        &graphql.Field{Type: graphql.Boolean},
		"image_url":       &graphql.Field{Type: graphql.String},
		"location":        &graphql.Field{Type: geoPointType},
	}

	agencyType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Agency",
		Fields: agencyFields,
	})

	rankedFields := graphql.Fields{"distance_km": &graphql.Field{Type: graphql.Float}}
	for name, f := range agencyFields {
		rankedFields[name] = &graphql.Field{Type: f.Type}
	}
	rankedType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "RankedAgency",
		Fields: rankedFields,
	})

	facetsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Facets",
		Fields: graphql.Fields{
			"cities":     &graphql.Field{Type: graphql.NewList(graphql.String)},
			"countries":  &graphql.Field{Type: graphql.NewList(graphql.String)},
			"categories": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"agencies": &graphql.Field{
				Type:        graphql.NewList(agencyType),
				Description: "Browse the directory with filters",
				Args: graphql.FieldConfigArgument{
					"query":      &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"city":       &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"country":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"category":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"min_rating": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"offset":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 24},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					agencies, _, err := deps.Agencies.Filter(p.Context, domain.AgencyFilter{
						Query:     p.Args["query"].(string),
						City:      p.Args["city"].(string),
						Country:   p.Args["country"].(string),
						Category:  p.Args["category"].(string),
						MinRating: p.Args["min_rating"].(float64),
						Offset:    p.Args["offset"].(int),
						Limit:     p.Args["limit"].(int),
					})
					return agencies, err
				},
			},
			"agency": &graphql.Field{
				Type:        agencyType,
				Description: "Get an agency by slug",
				Args: graphql.FieldConfigArgument{
					"slug": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Agencies.GetBySlug(p.Context, p.Args["slug"].(string))
				},
			},
			"featured": &graphql.Field{
				Type:        graphql.NewList(agencyType),
				Description: "Homepage selection of featured agencies",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 6},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Agencies.Featured(p.Context, p.Args["limit"].(int))
				},
			},
			"facets": &graphql.Field{
				Type:        facetsType,
				Description: "Values available to the browse filters",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Agencies.Facets(p.Context)
				},
			},
			"agenciesNearby": &graphql.Field{
				Type:        graphql.NewList(rankedType),
				Description: "Agencies ranked by distance from a point",
				Args: graphql.FieldConfigArgument{
					"lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)}
					ranked, err := deps.Agencies.Nearby(p.Context, pt, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					return flattenRanked(ranked), nil
				},
			},
			"searchAgencies": &graphql.Field{
				Type:        graphql.NewList(agencyType),
				Description: "Match name, city, country or category",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Agencies.Search(p.Context, p.Args["query"].(string), p.Args["limit"].(int))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// flattenRanked turns embedded-struct results into maps; graphql-go's
// default resolver does not look into embedded fields.
func flattenRanked(ranked []domain.RankedAgency) []map[string]interface{} {
	out := make([]map[string]interface{}, len(ranked))
	for i := range ranked {
		a := &ranked[i]
		m := map[string]interface{}{
			"id":              a.ID,
			"slug":            a.Slug,
			"title":           a.Title,
			"street":          a.Street,
			"city":            a.City,
			"city_normalized": a.CityNormalized,
			"country_code":    a.CountryCode,
			"country":         a.Country,
			"website":         a.Website,
			"phone":           a.Phone,
			"category":        a.Category,
			"featured":        a.Featured,
			"verified":        a.Verified,
			"image_url":       a.ImageURL,
			"location":        a.Location,
			"distance_km":     a.DistanceKm,
		}
		if a.TotalScore != nil {
			m["total_score"] = *a.TotalScore
		}
		if a.ReviewsCount != nil {
			m["reviews_count"] = *a.ReviewsCount
		}
		out[i] = m
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// Programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
