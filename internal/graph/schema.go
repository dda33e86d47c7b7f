// Package graph is the GraphQL surface. It shares the service layer, the
// ownership policy and the failure table with the REST surface.
package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/service"
)

type resolver struct {
	items    *service.Items
	accounts *service.Accounts
}

// NewSchema builds the executable schema.
func NewSchema(items *service.Items, accounts *service.Accounts) (graphql.Schema, error) {
	r := &resolver{items: items, accounts: accounts}

	location := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"type":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"coordinates": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Float)))},
		},
	})

	locationInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "LocationInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"type":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"coordinates": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.Float)))},
		},
	})

	owner := graphql.NewObject(graphql.ObjectConfig{
		Name: "Owner",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"user_name": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	user := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"user_name":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"role":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"created_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	item := graphql.NewObject(graphql.ObjectConfig{
		Name: "Item",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"weight":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"image":      &graphql.Field{Type: graphql.String},
			"birthdate":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"location":   &graphql.Field{Type: graphql.NewNonNull(location)},
			"owner":      &graphql.Field{Type: graphql.NewNonNull(owner), Resolve: resolveOwner},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	userInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"user_name": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"email":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"password":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	userModify := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UserModify",
		Fields: graphql.InputObjectConfigFieldMap{
			"user_name": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":     &graphql.InputObjectFieldConfig{Type: graphql.String},
			"password":  &graphql.InputObjectFieldConfig{Type: graphql.String},
			"role":      &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	loginResponse := graphql.NewObject(graphql.ObjectConfig{
		Name: "LoginResponse",
		Fields: graphql.Fields{
			"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"token":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"user":    &graphql.Field{Type: graphql.NewNonNull(user)},
		},
	})

	userResponse := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserResponse",
		Fields: graphql.Fields{
			"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"user":    &graphql.Field{Type: graphql.NewNonNull(user)},
		},
	})

	id := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}
	itemFields := func(required bool, extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		wrap := func(t graphql.Input) graphql.Input {
			if required {
				return graphql.NewNonNull(t)
			}
			return t
		}
		args := graphql.FieldConfigArgument{
			"name":      &graphql.ArgumentConfig{Type: wrap(graphql.String)},
			"weight":    &graphql.ArgumentConfig{Type: wrap(graphql.Float)},
			"birthdate": &graphql.ArgumentConfig{Type: wrap(graphql.String)},
			"location":  &graphql.ArgumentConfig{Type: wrap(locationInput)},
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"items":    &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(item)), Resolve: r.listItems},
			"itemById": &graphql.Field{Type: item, Args: id, Resolve: r.itemByID},
			"itemsByOwner": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(item)),
				Args: graphql.FieldConfigArgument{
					"ownerId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.itemsByOwner,
			},
			"itemsByArea": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(item)),
				Args: graphql.FieldConfigArgument{
					"topRight":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"bottomLeft": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.itemsByArea,
			},
			"users":      &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(user)), Resolve: r.listUsers},
			"userById":   &graphql.Field{Type: user, Args: id, Resolve: r.userByID},
			"checkToken": &graphql.Field{Type: userResponse, Resolve: r.checkToken},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"login": &graphql.Field{
				Type: loginResponse,
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.login,
			},
			"register": &graphql.Field{
				Type:    userResponse,
				Args:    graphql.FieldConfigArgument{"user": &graphql.ArgumentConfig{Type: graphql.NewNonNull(userInput)}},
				Resolve: r.register,
			},
			"updateUser": &graphql.Field{
				Type:    userResponse,
				Args:    graphql.FieldConfigArgument{"user": &graphql.ArgumentConfig{Type: graphql.NewNonNull(userModify)}},
				Resolve: r.updateUser,
			},
			"deleteUser": &graphql.Field{Type: userResponse, Resolve: r.deleteUser},
			"updateUserAsAdmin": &graphql.Field{
				Type: userResponse,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"user": &graphql.ArgumentConfig{Type: graphql.NewNonNull(userModify)},
				},
				Resolve: r.updateUserAsAdmin,
			},
			"deleteUserAsAdmin": &graphql.Field{Type: userResponse, Args: id, Resolve: r.deleteUserAsAdmin},

			"createItem": &graphql.Field{Type: item, Args: itemFields(true, nil), Resolve: r.createItem},
			"updateItem": &graphql.Field{Type: item, Args: itemFields(false, id), Resolve: r.updateItem(false)},
			"updateItemAsAdmin": &graphql.Field{
				Type: item,
				Args: itemFields(false, graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"owner": &graphql.ArgumentConfig{Type: graphql.ID},
				}),
				Resolve: r.updateItem(true),
			},
			"deleteItem":        &graphql.Field{Type: item, Args: id, Resolve: r.deleteItem(false)},
			"deleteItemAsAdmin": &graphql.Field{Type: item, Args: id, Resolve: r.deleteItem(true)},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func resolveOwner(p graphql.ResolveParams) (any, error) {
	switch it := p.Source.(type) {
	case model.Item:
		return it.Owner, nil
	case *model.Item:
		return it.Owner, nil
	}
	return nil, nil
}

func (r *resolver) listItems(p graphql.ResolveParams) (any, error) {
	items, err := r.items.List(p.Context)
	return items, toGraphQL(err)
}

func (r *resolver) itemByID(p graphql.ResolveParams) (any, error) {
	item, err := r.items.Get(p.Context, stringArg(p.Args, "id"))
	if err != nil {
		return nil, toGraphQL(err)
	}
	return item, nil
}

func (r *resolver) itemsByOwner(p graphql.ResolveParams) (any, error) {
	items, err := r.items.ListByOwner(p.Context, stringArg(p.Args, "ownerId"))
	return items, toGraphQL(err)
}

func (r *resolver) itemsByArea(p graphql.ResolveParams) (any, error) {
	items, err := r.items.ListByArea(p.Context, stringArg(p.Args, "topRight"), stringArg(p.Args, "bottomLeft"))
	return items, toGraphQL(err)
}

func (r *resolver) listUsers(p graphql.ResolveParams) (any, error) {
	accounts, err := r.accounts.List(p.Context)
	return accounts, toGraphQL(err)
}

func (r *resolver) userByID(p graphql.ResolveParams) (any, error) {
	acc, err := r.accounts.Get(p.Context, stringArg(p.Args, "id"))
	if err != nil {
		return nil, toGraphQL(err)
	}
	return acc, nil
}

func (r *resolver) checkToken(p graphql.ResolveParams) (any, error) {
	acc, err := r.accounts.CheckToken(p.Context, auth.FromContext(p.Context))
	return userMessage("Token valid", acc, err)
}

func (r *resolver) login(p graphql.ResolveParams) (any, error) {
	token, acc, err := r.accounts.Login(p.Context, stringArg(p.Args, "username"), stringArg(p.Args, "password"))
	if err != nil {
		return nil, toGraphQL(err)
	}
	return map[string]any{"message": "Login successful", "token": token, "user": acc}, nil
}

func (r *resolver) register(p graphql.ResolveParams) (any, error) {
	in := inputArg(p.Args, "user")
	acc, err := r.accounts.Register(p.Context, model.Registration{
		DisplayName: stringArg(in, "user_name"),
		Email:       stringArg(in, "email"),
		Password:    stringArg(in, "password"),
	})
	return userMessage("User created", acc, err)
}

func (r *resolver) updateUser(p graphql.ResolveParams) (any, error) {
	acc, err := r.accounts.UpdateSelf(p.Context, auth.FromContext(p.Context), accountChanges(inputArg(p.Args, "user")))
	return userMessage("User updated", acc, err)
}

func (r *resolver) deleteUser(p graphql.ResolveParams) (any, error) {
	acc, err := r.accounts.DeleteSelf(p.Context, auth.FromContext(p.Context))
	return userMessage("User deleted", acc, err)
}

func (r *resolver) updateUserAsAdmin(p graphql.ResolveParams) (any, error) {
	acc, err := r.accounts.UpdateAsAdmin(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id"), accountChanges(inputArg(p.Args, "user")))
	return userMessage("User updated", acc, err)
}

func (r *resolver) deleteUserAsAdmin(p graphql.ResolveParams) (any, error) {
	acc, err := r.accounts.DeleteAsAdmin(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id"))
	return userMessage("User deleted", acc, err)
}

func (r *resolver) createItem(p graphql.ResolveParams) (any, error) {
	patch, err := itemPatch(p.Args)
	if err != nil {
		return nil, toGraphQL(err)
	}

	in := service.NewItem{}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.Weight != nil {
		in.Weight = *patch.Weight
	}
	if patch.Birthdate != nil {
		in.Birthdate = *patch.Birthdate
	}
	if patch.Location != nil {
		in.Location = *patch.Location
	}

	item, err := r.items.Create(p.Context, auth.FromContext(p.Context), in)
	if err != nil {
		return nil, toGraphQL(err)
	}
	return item, nil
}

func (r *resolver) updateItem(asAdmin bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		patch, err := itemPatch(p.Args)
		if err != nil {
			return nil, toGraphQL(err)
		}

		upd := service.ItemUpdate{Patch: patch}
		if asAdmin {
			upd.OwnerID = optString(p.Args, "owner")
		}

		item, err := r.items.Update(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id"), upd, asAdmin)
		if err != nil {
			return nil, toGraphQL(err)
		}
		return item, nil
	}
}

func (r *resolver) deleteItem(asAdmin bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		item, err := r.items.Delete(p.Context, auth.FromContext(p.Context), stringArg(p.Args, "id"), asAdmin)
		if err != nil {
			return nil, toGraphQL(err)
		}
		return item, nil
	}
}

func userMessage(message string, acc *model.Account, err error) (any, error) {
	if err != nil {
		return nil, toGraphQL(err)
	}
	return map[string]any{"message": message, "user": acc}, nil
}
