package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/skyhop/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	availabilityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Availability",
		Fields: graphql.Fields{
			"segment_id":         &graphql.Field{Type: graphql.String},
			"date":               &graphql.Field{Type: graphql.String},
			"available_seats":    &graphql.Field{Type: graphql.Int},
			"seat_limit":         &graphql.Field{Type: graphql.Int},
			"binding_segment_id": &graphql.Field{Type: graphql.String},
			"overlap_size":       &graphql.Field{Type: graphql.Int},
			"capacity_mode":      &graphql.Field{Type: graphql.String},
		},
	})

	seatType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Seat",
		Fields: graphql.Fields{
			"label":       &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
			"held_by_you": &graphql.Field{Type: graphql.Boolean},
			"held_until":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	seatMapType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SeatMap",
		Fields: graphql.Fields{
			"segment_id": &graphql.Field{Type: graphql.String},
			"date":       &graphql.Field{Type: graphql.String},
			"available":  &graphql.Field{Type: graphql.Int},
			"seats":      &graphql.Field{Type: graphql.NewList(seatType)},
		},
	})

	passengerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Passenger",
		Fields: graphql.Fields{
			"name":       &graphql.Field{Type: graphql.String},
			"age":        &graphql.Field{Type: graphql.Int},
			"gender":     &graphql.Field{Type: graphql.String},
			"seat_label": &graphql.Field{Type: graphql.String},
		},
	})

	bookingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Booking",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"pnr":            &graphql.Field{Type: graphql.String},
			"booking_number": &graphql.Field{Type: graphql.String},
			"segment_id":     &graphql.Field{Type: graphql.String},
			"travel_date": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return domain.FormatDate(p.Source.(*domain.Booking).TravelDate), nil
				},
			},
			"status":           &graphql.Field{Type: graphql.String},
			"total_fare":       &graphql.Field{Type: graphql.Int},
			"refund_amount":    &graphql.Field{Type: graphql.Int},
			"reschedule_count": &graphql.Field{Type: graphql.Int},
			"passengers":       &graphql.Field{Type: graphql.NewList(passengerType)},
		},
	})

	segmentArgs := graphql.FieldConfigArgument{
		"segmentId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"date":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"availability": &graphql.Field{
				Type:        availabilityType,
				Description: "Advisory seat count of a segment on a date",
				Args:        segmentArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					date, err := domain.ParseDate(p.Args["date"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Inventory.Available(p.Context, p.Args["segmentId"].(string), date)
				},
			},
			"seatMap": &graphql.Field{
				Type:        seatMapType,
				Description: "Seat states of a per-seat vehicle",
				Args:        segmentArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					date, err := domain.ParseDate(p.Args["date"].(string))
					if err != nil {
						return nil, err
					}
					return deps.Inventory.SeatMap(p.Context, p.Args["segmentId"].(string), date, rootCaller(p).UserID)
				},
			},
			"booking": &graphql.Field{
				Type:        bookingType,
				Description: "Look up one of your bookings by PNR",
				Args: graphql.FieldConfigArgument{
					"pnr": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, err := deps.Bookings.GetByPNR(p.Context, p.Args["pnr"].(string))
					if err != nil {
						return nil, err
					}
					if !b.OwnedBy(rootCaller(p)) {
						return nil, domain.NotFoundError{Resource: "booking"}
					}
					return b, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func rootCaller(p graphql.ResolveParams) domain.Caller {
	root, _ := p.Info.RootValue.(map[string]interface{})
	caller, _ := root["caller"].(domain.Caller)
	return caller
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			RootObject:     map[string]interface{}{"caller": callerFrom(c)},
			Context:        c.UserContext(),
		})

		c.Set(fiber.HeaderCacheControl, "private, no-store")
		return c.JSON(result)
	}
}
